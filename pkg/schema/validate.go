package schema

import "sort"

// Schema is a map of field names to their expected types.
// Example: {"CitationForm": String(), "Homograph": Int(), "Variants": Slice(String())}
type Schema map[string]Type

// Validate checks if data conforms to the schema. Fields absent from data are
// reported as required. Errors are returned in field name order.
func Validate(schema Schema, data map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	names := make([]string, 0, len(schema))
	for name := range schema {
		names = append(names, name)
	}
	sort.Strings(names)

	var errs []error
	for _, name := range names {
		value, exists := data[name]
		if !exists {
			errs = append(errs, &ValidationError{Key: name, Reason: "required"})
			continue
		}
		if err := schema[name].Validate(value); err != nil {
			errs = append(errs, &ValidationError{Key: name, Reason: err.Error(), Value: value})
		}
	}

	if len(errs) > 0 {
		return &AggregateError{Errors: errs}
	}
	return nil
}
