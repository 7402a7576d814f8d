// Package performance audits pages with the Lighthouse CLI and evaluates the
// resulting metrics against configured budgets.
package performance
