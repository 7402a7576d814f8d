// Package browser opens audit sessions in Chrome through go-rod.
//
// Launcher starts (or connects to) a browser, opens an incognito page with the
// requested viewport, records console, exception, and network activity, and
// navigates to the target with retries. The returned session satisfies the
// audit collaborator contracts.
package browser
