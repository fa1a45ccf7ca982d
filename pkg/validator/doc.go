// Package validator provides rule-based validation that collects every failed
// rule into ValidationErrors.
//
//	err := validator.Apply(
//		validator.Required("email", req.Email),
//		validator.Email("email", req.Email),
//		validator.MinLen("password", req.Password, 8),
//	)
//	if errs := validator.ExtractValidationErrors(err); errs != nil {
//		// errs.Map() -> {"email": ["must be a valid email address"]}
//	}
package validator
