package browser

import (
	"sync"
	"testing"

	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"

	"github.com/temirov/pageaudit/internal/model"
)

func TestSignalRecorderAccumulatesEvents(testInstance *testing.T) {
	recorder := NewSignalRecorder()
	require.Equal(testInstance, model.RuntimeSignals{
		ConsoleMessages: []model.ConsoleMessage{},
		PageErrors:      []string{},
		FailedRequests:  []model.FailedRequest{},
	}, recorder.Snapshot())

	recorder.recordConsole(&proto.RuntimeConsoleAPICalled{
		Type: proto.RuntimeConsoleAPICalledTypeWarning,
		Args: []*proto.RuntimeRemoteObject{{Description: "deprecated"}, nil, {Description: "api"}},
	})
	recorder.recordException(&proto.RuntimeExceptionThrown{ExceptionDetails: &proto.RuntimeExceptionDetails{Text: "Uncaught"}})
	recorder.recordException(&proto.RuntimeExceptionThrown{ExceptionDetails: &proto.RuntimeExceptionDetails{
		Text:      "Uncaught",
		Exception: &proto.RuntimeRemoteObject{Description: "TypeError: x is undefined"},
	}})
	recorder.recordException(&proto.RuntimeExceptionThrown{})
	recorder.recordRequest(&proto.NetworkRequestWillBeSent{RequestID: "1", Request: &proto.NetworkRequest{URL: "https://example.com/app.js"}})
	recorder.recordRequest(&proto.NetworkRequestWillBeSent{RequestID: "2", Request: &proto.NetworkRequest{URL: "https://example.com/api"}})
	recorder.recordFailure(&proto.NetworkLoadingFailed{RequestID: "2", ErrorText: "net::ERR_CONNECTION_REFUSED"})
	recorder.recordFailure(&proto.NetworkLoadingFailed{RequestID: "9", ErrorText: "net::ERR_ABORTED"})

	snapshot := recorder.Snapshot()
	require.Equal(testInstance, []model.ConsoleMessage{{Level: "warning", Text: "deprecated api"}}, snapshot.ConsoleMessages)
	require.Equal(testInstance, []string{"Uncaught", "TypeError: x is undefined"}, snapshot.PageErrors)
	require.Equal(testInstance, 2, snapshot.RequestCount)
	require.Equal(testInstance, []model.FailedRequest{
		{URL: "https://example.com/api", Reason: "net::ERR_CONNECTION_REFUSED"},
		{URL: "", Reason: "net::ERR_ABORTED"},
	}, snapshot.FailedRequests)

	snapshot.PageErrors[0] = "mutated"
	require.Equal(testInstance, "Uncaught", recorder.Snapshot().PageErrors[0])
}

func TestSignalRecorderIsSafeForConcurrentEvents(testInstance *testing.T) {
	recorder := NewSignalRecorder()
	var waitGroup sync.WaitGroup
	for workerIndex := 0; workerIndex < 8; workerIndex++ {
		waitGroup.Add(1)
		go func() {
			defer waitGroup.Done()
			for eventIndex := 0; eventIndex < 25; eventIndex++ {
				recorder.recordRequest(&proto.NetworkRequestWillBeSent{RequestID: proto.NetworkRequestID("id"), Request: &proto.NetworkRequest{URL: "https://example.com/"}})
				_ = recorder.Snapshot()
			}
		}()
	}
	waitGroup.Wait()
	require.Equal(testInstance, 200, recorder.Snapshot().RequestCount)
}
