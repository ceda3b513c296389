// Package openapi builds the OpenAPI 3 document for the public REST API.
package openapi

import (
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// Generate returns the API description with every component reference
// resolved, so the result validates as built. baseURL is listed as the only
// server; empty means relative to the document. The document is returned even
// when resolving fails.
func Generate(baseURL, version string) (*openapi3.T, error) {
	if baseURL == "" {
		baseURL = "/"
	}
	doc := &openapi3.T{
		OpenAPI: "3.0.3",
		Info: &openapi3.Info{
			Title:       "Hijo Electricity API",
			Description: "Portfolio projects, contact form and admin session endpoints.",
			Version:     version,
		},
		Servers: openapi3.Servers{{URL: baseURL}},
		Tags: openapi3.Tags{
			{Name: "auth", Description: "Admin session"},
			{Name: "projects", Description: "Portfolio"},
			{Name: "contact", Description: "Contact form and inbox"},
		},
	}

	components := openapi3.NewComponents()
	components.Schemas = componentSchemas()
	components.SecuritySchemes = openapi3.SecuritySchemes{
		"bearerAuth": &openapi3.SecuritySchemeRef{
			Value: openapi3.NewJWTSecurityScheme(),
		},
	}
	doc.Components = &components
	doc.Paths = openapi3.NewPaths()

	idParam := openapi3.Parameters{&openapi3.ParameterRef{Value: openapi3.NewPathParameter("id").
		WithDescription("Positive integer id").
		WithSchema(openapi3.NewInt64Schema().WithMin(1))}}

	doc.Paths.Set("/api/auth/login", &openapi3.PathItem{
		Post: op("auth", "login", "Exchange credentials for a token", false,
			jsonBody("LoginInput"), responses("200", "Login successful", envelope(ref("LoginResult")), "400", "401", "429")),
	})
	doc.Paths.Set("/api/auth/verify", &openapi3.PathItem{
		Get: op("auth", "verifyToken", "Check the current token", true, nil,
			responses("200", "Token is valid", envelope(object(nil, openapi3.Schemas{"admin": ref("AdminInfo")})), "401")),
	})

	doc.Paths.Set("/api/projects", &openapi3.PathItem{
		Get: op("projects", "listProjects", "List projects, newest first", false, nil,
			responses("200", "Projects fetched successfully", envelope(arrayOf(ref("Project"))))),
		Post: op("projects", "createProject", "Create a project with its image", true,
			multipartBody(), responses("201", "Project created successfully", envelope(ref("Project")), "400", "401", "429")),
	})
	doc.Paths.Set("/api/projects/{id}", &openapi3.PathItem{
		Parameters: idParam,
		Get: op("projects", "getProject", "Get a project", false, nil,
			responses("200", "Project fetched successfully", envelope(ref("Project")), "400", "404")),
		Put: op("projects", "updateProject", "Update a project; omitted fields keep their value", true,
			multipartBody(), responses("200", "Project updated successfully", envelope(ref("Project")), "400", "401", "404", "429")),
		Delete: op("projects", "deleteProject", "Delete a project and its image", true, nil,
			responses("200", "Project deleted successfully", envelope(nil), "400", "401", "404")),
	})

	doc.Paths.Set("/api/contact", &openapi3.PathItem{
		Post: op("contact", "createContact", "Submit the contact form", false,
			jsonBody("ContactInput"), responses("201", "Your message has been received! We will contact you soon.",
				envelope(ref("ContactReceipt")), "400", "429")),
		Get: op("contact", "listContacts", "List submissions, newest first", true, nil,
			responses("200", "Contacts fetched successfully", envelope(arrayOf(ref("Contact"))), "401")),
	})
	doc.Paths.Set("/api/contact/{id}", &openapi3.PathItem{
		Parameters: idParam,
		Get: op("contact", "getContact", "Get a submission", true, nil,
			responses("200", "Contact fetched successfully", envelope(ref("Contact")), "400", "401", "404")),
		Delete: op("contact", "deleteContact", "Delete a submission", true, nil,
			responses("200", "Contact deleted successfully", envelope(nil), "400", "401", "404")),
	})

	if err := openapi3.NewLoader().ResolveRefsIn(doc, nil); err != nil {
		return doc, fmt.Errorf("resolve openapi refs: %w", err)
	}
	return doc, nil
}

func op(tag, id, summary string, secured bool, body *openapi3.RequestBodyRef, resp *openapi3.Responses) *openapi3.Operation {
	o := &openapi3.Operation{
		Tags:        []string{tag},
		OperationID: id,
		Summary:     summary,
		RequestBody: body,
		Responses:   resp,
	}
	if secured {
		o.Security = &openapi3.SecurityRequirements{{"bearerAuth": []string{}}}
	}
	return o
}

func jsonBody(schema string) *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithJSONSchemaRef(ref(schema))}
}

func multipartBody() *openapi3.RequestBodyRef {
	return &openapi3.RequestBodyRef{Value: openapi3.NewRequestBody().
		WithRequired(true).
		WithContent(openapi3.NewContentWithFormDataSchemaRef(ref("ProjectForm")))}
}

var errorDescriptions = map[string]string{
	"400": "Bad request",
	"401": "Unauthorized",
	"404": "Not found",
	"429": "Too many requests",
}

// responses builds the success response plus the listed error codes. Every
// operation can also fail with 500.
func responses(status, description string, schema *openapi3.SchemaRef, errorCodes ...string) *openapi3.Responses {
	rs := openapi3.NewResponsesWithCapacity(len(errorCodes) + 2)
	rs.Set(status, &openapi3.ResponseRef{Value: openapi3.NewResponse().
		WithDescription(description).
		WithJSONSchemaRef(schema)})

	for _, code := range append(errorCodes, "500") {
		desc, ok := errorDescriptions[code]
		if !ok {
			desc = "Internal server error"
		}
		rs.Set(code, &openapi3.ResponseRef{Value: openapi3.NewResponse().
			WithDescription(desc).
			WithJSONSchemaRef(ref("ErrorResponse"))})
	}
	return rs
}
