package browser

import (
	"strings"
	"sync"

	"github.com/go-rod/rod/lib/proto"

	"github.com/temirov/pageaudit/internal/model"
)

const consoleArgumentSeparatorConstant = " "

// SignalRecorder accumulates runtime activity of a page. Events arrive on the
// rod event goroutine, so every access is guarded.
type SignalRecorder struct {
	mutex       sync.Mutex
	signals     model.RuntimeSignals
	requestURLs map[proto.NetworkRequestID]string
}

// NewSignalRecorder constructs an empty recorder.
func NewSignalRecorder() *SignalRecorder {
	return &SignalRecorder{
		signals: model.RuntimeSignals{
			ConsoleMessages: []model.ConsoleMessage{},
			PageErrors:      []string{},
			FailedRequests:  []model.FailedRequest{},
		},
		requestURLs: make(map[proto.NetworkRequestID]string),
	}
}

// Snapshot returns a copy of the accumulated signals.
func (recorder *SignalRecorder) Snapshot() model.RuntimeSignals {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	return model.RuntimeSignals{
		ConsoleMessages: append([]model.ConsoleMessage{}, recorder.signals.ConsoleMessages...),
		PageErrors:      append([]string{}, recorder.signals.PageErrors...),
		FailedRequests:  append([]model.FailedRequest{}, recorder.signals.FailedRequests...),
		RequestCount:    recorder.signals.RequestCount,
	}
}

func (recorder *SignalRecorder) recordConsole(event *proto.RuntimeConsoleAPICalled) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals.ConsoleMessages = append(recorder.signals.ConsoleMessages, model.ConsoleMessage{
		Level: string(event.Type),
		Text:  stringifyConsoleArguments(event.Args),
	})
}

func (recorder *SignalRecorder) recordException(event *proto.RuntimeExceptionThrown) {
	if event.ExceptionDetails == nil {
		return
	}
	message := event.ExceptionDetails.Text
	if event.ExceptionDetails.Exception != nil && len(event.ExceptionDetails.Exception.Description) > 0 {
		message = event.ExceptionDetails.Exception.Description
	}

	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals.PageErrors = append(recorder.signals.PageErrors, message)
}

func (recorder *SignalRecorder) recordRequest(event *proto.NetworkRequestWillBeSent) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals.RequestCount++
	if event.Request != nil {
		recorder.requestURLs[event.RequestID] = event.Request.URL
	}
}

func (recorder *SignalRecorder) recordFailure(event *proto.NetworkLoadingFailed) {
	recorder.mutex.Lock()
	defer recorder.mutex.Unlock()
	recorder.signals.FailedRequests = append(recorder.signals.FailedRequests, model.FailedRequest{
		URL:    recorder.requestURLs[event.RequestID],
		Reason: event.ErrorText,
	})
}

func stringifyConsoleArguments(arguments []*proto.RuntimeRemoteObject) string {
	parts := make([]string, 0, len(arguments))
	for _, argument := range arguments {
		if argument == nil {
			continue
		}
		if !argument.Value.Nil() {
			parts = append(parts, argument.Value.String())
			continue
		}
		if len(argument.Description) > 0 {
			parts = append(parts, argument.Description)
		}
	}
	return strings.Join(parts, consoleArgumentSeparatorConstant)
}
