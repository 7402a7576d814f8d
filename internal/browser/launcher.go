package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"go.uber.org/zap"

	"github.com/temirov/pageaudit/internal/audit"
	"github.com/temirov/pageaudit/internal/retry"
)

const (
	defaultViewportWidthConstant      = 1366
	defaultViewportHeightConstant     = 768
	defaultNavigationTimeoutConstant  = 30 * time.Second
	deviceScaleFactorConstant         = 1.0
	navigationOperationNameConstant   = "browser navigation"
	launchErrorTemplateConstant       = "unable to launch chrome: %w"
	connectErrorTemplateConstant      = "unable to connect to chrome at %s: %w"
	incognitoErrorTemplateConstant    = "unable to create incognito context: %w"
	pageErrorTemplateConstant         = "unable to open page: %w"
	viewportErrorTemplateConstant     = "unable to set viewport: %w"
	userAgentErrorTemplateConstant    = "unable to set user agent: %w"
	evaluateErrorTemplateConstant     = "unable to evaluate script: %w"
	encodeResultErrorTemplateConstant = "unable to encode script result: %w"
	screenshotErrorTemplateConstant   = "unable to capture screenshot: %w"
	launchingBrowserMessageConstant   = "Launching headless browser"
	connectedBrowserMessageConstant   = "Opened browser session"
	controlURLLogFieldConstant        = "control_url"
	targetURLLogFieldConstant         = "target_url"
)

// Configuration selects how Chrome is reached.
type Configuration struct {
	ControlURL string
	BinaryPath string
	Headless   bool
}

// Launcher opens go-rod backed browser sessions.
type Launcher struct {
	configuration Configuration
	retryPolicy   *retry.Policy
	logger        *zap.Logger
}

// NewLauncher constructs a Launcher. A nil retry policy performs a single attempt.
func NewLauncher(configuration Configuration, retryPolicy *retry.Policy, logger *zap.Logger) *Launcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retryPolicy == nil {
		retryPolicy = retry.NewPolicy(retry.ConstantStrategy{}, 1, logger)
	}
	return &Launcher{configuration: configuration, retryPolicy: retryPolicy, logger: logger}
}

// Open starts or connects to Chrome, opens an incognito page, and navigates to targetURL.
func (browserLauncher *Launcher) Open(executionContext context.Context, targetURL string, options audit.BrowserOptions) (audit.BrowserSession, error) {
	session := &session{}

	controlURL := strings.TrimSpace(browserLauncher.configuration.ControlURL)
	if len(controlURL) == 0 {
		chromeLauncher := launcher.New().Headless(browserLauncher.configuration.Headless)
		if binaryPath := strings.TrimSpace(browserLauncher.configuration.BinaryPath); len(binaryPath) > 0 {
			chromeLauncher = chromeLauncher.Bin(binaryPath)
		}
		browserLauncher.logger.Debug(launchingBrowserMessageConstant)
		launchedURL, launchError := chromeLauncher.Context(executionContext).Launch()
		if launchError != nil {
			return audit.BrowserSession{}, fmt.Errorf(launchErrorTemplateConstant, launchError)
		}
		controlURL = launchedURL
		session.chromeLauncher = chromeLauncher
	}

	browser := rod.New().ControlURL(controlURL).Context(executionContext)
	if connectError := browser.Connect(); connectError != nil {
		session.Close()
		return audit.BrowserSession{}, fmt.Errorf(connectErrorTemplateConstant, controlURL, connectError)
	}
	session.browser = browser

	incognitoBrowser, incognitoError := browser.Incognito()
	if incognitoError != nil {
		session.Close()
		return audit.BrowserSession{}, fmt.Errorf(incognitoErrorTemplateConstant, incognitoError)
	}
	session.incognitoBrowser = incognitoBrowser

	page, pageError := incognitoBrowser.Page(proto.TargetCreateTarget{})
	if pageError != nil {
		session.Close()
		return audit.BrowserSession{}, fmt.Errorf(pageErrorTemplateConstant, pageError)
	}
	session.page = page

	if configureError := configurePage(page, options); configureError != nil {
		session.Close()
		return audit.BrowserSession{}, configureError
	}

	recorder := NewSignalRecorder()
	listenContext, cancelListening := context.WithCancel(executionContext)
	session.cancelListening = cancelListening
	waitForEvents := page.Context(listenContext).EachEvent(
		recorder.recordConsole,
		recorder.recordException,
		recorder.recordRequest,
		recorder.recordFailure,
	)
	go waitForEvents()

	navigationTimeout := options.NavigationTimeout
	if navigationTimeout <= 0 {
		navigationTimeout = defaultNavigationTimeoutConstant
	}
	navigationError := browserLauncher.retryPolicy.Do(executionContext, navigationOperationNameConstant, func(attemptContext context.Context) error {
		timedPage := page.Context(attemptContext).Timeout(navigationTimeout)
		defer timedPage.CancelTimeout()
		if navigateError := timedPage.Navigate(targetURL); navigateError != nil {
			return navigateError
		}
		return timedPage.WaitLoad()
	})
	if navigationError != nil {
		session.Close()
		return audit.BrowserSession{}, navigationError
	}

	browserLauncher.logger.Debug(connectedBrowserMessageConstant, zap.String(controlURLLogFieldConstant, controlURL), zap.String(targetURLLogFieldConstant, targetURL))

	return audit.BrowserSession{
		Page:    &pageHandle{page: page},
		Closer:  session,
		Signals: recorder,
	}, nil
}

func configurePage(page *rod.Page, options audit.BrowserOptions) error {
	viewportWidth := options.ViewportWidth
	if viewportWidth <= 0 {
		viewportWidth = defaultViewportWidthConstant
	}
	viewportHeight := options.ViewportHeight
	if viewportHeight <= 0 {
		viewportHeight = defaultViewportHeightConstant
	}

	viewportError := proto.EmulationSetDeviceMetricsOverride{
		Width:             viewportWidth,
		Height:            viewportHeight,
		DeviceScaleFactor: deviceScaleFactorConstant,
		Mobile:            false,
	}.Call(page)
	if viewportError != nil {
		return fmt.Errorf(viewportErrorTemplateConstant, viewportError)
	}

	if userAgent := strings.TrimSpace(options.UserAgent); len(userAgent) > 0 {
		if userAgentError := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: userAgent}); userAgentError != nil {
			return fmt.Errorf(userAgentErrorTemplateConstant, userAgentError)
		}
	}
	return nil
}

// session releases the page, the incognito context, the connection, and a
// launched Chrome process in that order.
type session struct {
	chromeLauncher   *launcher.Launcher
	browser          *rod.Browser
	incognitoBrowser *rod.Browser
	page             *rod.Page
	cancelListening  context.CancelFunc
}

// Close releases every acquired resource and joins their errors.
func (browserSession *session) Close() error {
	var closeErrors []error
	if browserSession.cancelListening != nil {
		browserSession.cancelListening()
	}
	if browserSession.page != nil {
		closeErrors = append(closeErrors, browserSession.page.Close())
	}
	if browserSession.incognitoBrowser != nil {
		closeErrors = append(closeErrors, browserSession.incognitoBrowser.Close())
	}
	if browserSession.browser != nil && browserSession.chromeLauncher != nil {
		closeErrors = append(closeErrors, browserSession.browser.Close())
	}
	if browserSession.chromeLauncher != nil {
		browserSession.chromeLauncher.Kill()
		browserSession.chromeLauncher.Cleanup()
	}
	return errors.Join(closeErrors...)
}

// pageHandle adapts a rod page to audit.PageHandle.
type pageHandle struct {
	page *rod.Page
}

// Evaluate runs a JavaScript function expression and returns its JSON-encoded result.
func (handle *pageHandle) Evaluate(executionContext context.Context, script string, awaitPromise bool) ([]byte, error) {
	result, evaluateError := handle.page.Context(executionContext).Evaluate(&rod.EvalOptions{
		JS:           script,
		ByValue:      true,
		AwaitPromise: awaitPromise,
	})
	if evaluateError != nil {
		return nil, fmt.Errorf(evaluateErrorTemplateConstant, evaluateError)
	}
	encoded, encodeError := result.Value.MarshalJSON()
	if encodeError != nil {
		return nil, fmt.Errorf(encodeResultErrorTemplateConstant, encodeError)
	}
	return encoded, nil
}

// Screenshot captures the viewport or the full page as PNG.
func (handle *pageHandle) Screenshot(executionContext context.Context, fullPage bool) ([]byte, error) {
	content, screenshotError := handle.page.Context(executionContext).Screenshot(fullPage, nil)
	if screenshotError != nil {
		return nil, fmt.Errorf(screenshotErrorTemplateConstant, screenshotError)
	}
	return content, nil
}
