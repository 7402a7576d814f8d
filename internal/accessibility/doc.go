// Package accessibility runs axe-core inside an open page and summarizes the
// violations it reports. The rule engine itself is the injected axe script.
package accessibility
