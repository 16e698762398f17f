// Package schema provides a type-safe validation system for structured data.
//
// It defines a simple type system with built-in types (string, int, float, bool,
// date, regex, pattern) and support for slices and custom validators. Detail-tree
// template nodes name a type in their "validator" attribute; a value that fails it
// is shown as an inline data error on its row. Schemas map field names to types,
// enabling runtime validation of complex data structures.
//
// Basic usage:
//
//	schema := schema.Schema{
//	    "CitationForm": schema.String(),
//	    "Homograph":    schema.Int(),
//	    "Created":      schema.Date(),
//	}
//
//	data := map[string]any{
//	    "CitationForm": "run",
//	    "Homograph":    2,
//	    "Created":      "2024-03-01",
//	}
//
//	if err := schema.Validate(schema, data); err != nil {
//	    // Handle validation errors
//	}
//
// Schemas can be created programmatically or parsed from type strings:
//
//	typeMap := map[string]string{
//	    "CitationForm": "pattern:^[a-z]+$",
//	    "Homograph":    "int",
//	    "Variants":     "[string]",
//	}
//
//	schema, err := schema.ParseTypeMap(typeMap)
//
// Custom validators can be registered for domain-specific validation:
//
//	positiveInt := schema.Custom("positive_int", func(v any) error {
//	    i, ok := v.(int)
//	    if !ok {
//	        return fmt.Errorf("expected int")
//	    }
//	    if i <= 0 {
//	        return fmt.Errorf("must be positive")
//	    }
//	    return nil
//	})
//
// This package is designed to be library-agnostic, with zero external dependencies
// beyond the Go standard library. It can be embedded in larger systems or extracted
// as a standalone library.
package schema
