package errors_test

import (
	"fmt"

	"github.com/agentstation/brightsync/pkg/errors"
)

// Example demonstrates basic error creation and checking.
func Example() {
	err := errors.NewNotFoundError("store config", "acme")

	if errors.IsNotFound(err) {
		fmt.Println("Resource not found")
	}

	// Output: Resource not found
}

// Example_classification shows how a store run decides whether to continue.
func Example_classification() {
	detail := errors.NewDetailFetchError("42", "options", fmt.Errorf("connection reset"))
	listing := errors.NewListFetchError("acme", "products", 3, fmt.Errorf("status 502"))

	fmt.Println(errors.IsRecoverable(detail), errors.IsFatal(detail))
	fmt.Println(errors.IsRecoverable(listing), errors.IsFatal(listing))

	// Output:
	// true false
	// false true
}

// Example_aPIError demonstrates API error handling.
func Example_aPIError() {
	err := &errors.APIError{
		Service:    "storefront",
		Endpoint:   "/api/v2.6.1/products",
		StatusCode: 429,
		Message:    "Rate limit exceeded",
	}

	if err.Retryable() {
		fmt.Println("Rate limited - retry later")
	}

	// Output: Rate limited - retry later
}
