package openapi

import "github.com/getkin/kin-openapi/openapi3"

func ref(name string) *openapi3.SchemaRef {
	return openapi3.NewSchemaRef("#/components/schemas/"+name, nil)
}

func str() *openapi3.SchemaRef { return openapi3.NewStringSchema().NewRef() }

func nullableStr() *openapi3.SchemaRef {
	return openapi3.NewStringSchema().WithNullable().NewRef()
}

func dateTime() *openapi3.SchemaRef { return openapi3.NewDateTimeSchema().NewRef() }

func id() *openapi3.SchemaRef { return openapi3.NewInt64Schema().NewRef() }

func object(required []string, props openapi3.Schemas) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:       &openapi3.Types{"object"},
		Required:   required,
		Properties: props,
	}}
}

func arrayOf(items *openapi3.SchemaRef) *openapi3.SchemaRef {
	return &openapi3.SchemaRef{Value: &openapi3.Schema{
		Type:  &openapi3.Types{"array"},
		Items: items,
	}}
}

func bounded(min, max uint64) *openapi3.SchemaRef {
	s := openapi3.NewStringSchema().WithMinLength(int64(min))
	if max > 0 {
		s = s.WithMaxLength(int64(max))
	}
	return s.NewRef()
}

// componentSchemas describes the models and the response envelope.
func componentSchemas() openapi3.Schemas {
	return openapi3.Schemas{
		"Project": object([]string{"id", "titleEn", "descriptionEn", "image"}, openapi3.Schemas{
			"id":            id(),
			"titleEn":       str(),
			"titleAr":       nullableStr(),
			"descriptionEn": str(),
			"descriptionAr": nullableStr(),
			"image":         str(),
			"createdAt":     dateTime(),
			"updatedAt":     dateTime(),
		}),
		"Contact": object([]string{"id", "name", "email", "message"}, openapi3.Schemas{
			"id":        id(),
			"name":      str(),
			"email":     openapi3.NewStringSchema().WithFormat("email").NewRef(),
			"phone":     nullableStr(),
			"message":   str(),
			"createdAt": dateTime(),
		}),
		"ContactReceipt": object([]string{"id", "name", "email"}, openapi3.Schemas{
			"id":    id(),
			"name":  str(),
			"email": str(),
		}),
		"AdminInfo": object([]string{"id", "username"}, openapi3.Schemas{
			"id":       id(),
			"username": str(),
		}),
		"LoginResult": object([]string{"token", "admin"}, openapi3.Schemas{
			"token": str(),
			"admin": ref("AdminInfo"),
		}),
		"LoginInput": object([]string{"username", "password"}, openapi3.Schemas{
			"username": bounded(3, 50),
			"password": str(),
		}),
		"ContactInput": object([]string{"name", "email", "message"}, openapi3.Schemas{
			"name":    bounded(2, 100),
			"email":   openapi3.NewStringSchema().WithFormat("email").WithMaxLength(150).NewRef(),
			"phone":   str(),
			"message": bounded(10, 2000),
		}),
		"ProjectForm": object(nil, openapi3.Schemas{
			"titleEn":       bounded(0, 255),
			"titleAr":       bounded(0, 255),
			"descriptionEn": str(),
			"descriptionAr": str(),
			"image":         openapi3.NewStringSchema().WithFormat("binary").NewRef(),
		}),
		"FieldError": object([]string{"field", "message"}, openapi3.Schemas{
			"field":   str(),
			"message": str(),
		}),
		"ErrorResponse": object([]string{"success", "message"}, openapi3.Schemas{
			"success": openapi3.NewBoolSchema().NewRef(),
			"message": str(),
			"errors":  arrayOf(ref("FieldError")),
			"error":   str(),
		}),
	}
}

// envelope wraps data in the success envelope.
func envelope(data *openapi3.SchemaRef) *openapi3.SchemaRef {
	props := openapi3.Schemas{
		"success": openapi3.NewBoolSchema().NewRef(),
		"message": str(),
	}
	if data != nil {
		props["data"] = data
	}
	return object([]string{"success", "message"}, props)
}
