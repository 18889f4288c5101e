package handlers

import (
	"net/http"

	"github.com/betanery/easy-doc-signer-sub000/internal/models"
)

// OpenAPISpec represents the OpenAPI 3.0 specification
type OpenAPISpec struct {
	OpenAPI    string                 `json:"openapi"`
	Info       OpenAPIInfo            `json:"info"`
	Paths      map[string]interface{} `json:"paths"`
	Components OpenAPIComponents      `json:"components"`
	Security   []map[string][]string  `json:"security"`
}

type OpenAPIInfo struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Version     string `json:"version"`
}

type OpenAPIComponents struct {
	Schemas         map[string]interface{} `json:"schemas"`
	SecuritySchemes map[string]interface{} `json:"securitySchemes"`
}

// GetOpenAPISpec serves the API description
func (h *ManagementAPIHandler) GetOpenAPISpec(w http.ResponseWriter, r *http.Request) {
	writeJSONResponse(w, h.logger, http.StatusOK, generateOpenAPISpec())
}

func generateOpenAPISpec() OpenAPISpec {
	return OpenAPISpec{
		OpenAPI: "3.0.3",
		Info: OpenAPIInfo{
			Title:       "easy-doc-signer API",
			Description: "Document signing proxy with per-tenant plan enforcement",
			Version:     "1.0.0",
		},
		Paths:      generatePaths(),
		Components: generateComponents(),
		Security:   []map[string][]string{{"bearerAuth": {}}},
	}
}

func ref(schema string) map[string]interface{} {
	return map[string]interface{}{"$ref": "#/components/schemas/" + schema}
}

func jsonBody(schema string) map[string]interface{} {
	return map[string]interface{}{
		"required": true,
		"content": map[string]interface{}{
			"application/json": map[string]interface{}{"schema": ref(schema)},
		},
	}
}

func jsonResponse(description, schema string) map[string]interface{} {
	response := map[string]interface{}{"description": description}
	if schema != "" {
		response["content"] = map[string]interface{}{
			"application/json": map[string]interface{}{"schema": ref(schema)},
		}
	}
	return response
}

func operation(summary, tag string, responses map[string]interface{}) map[string]interface{} {
	responses["default"] = jsonResponse("Error", "Error")
	return map[string]interface{}{
		"summary":   summary,
		"tags":      []string{tag},
		"responses": responses,
	}
}

func withBody(op map[string]interface{}, schema string) map[string]interface{} {
	op["requestBody"] = jsonBody(schema)
	return op
}

func idParam(name string) []interface{} {
	return []interface{}{map[string]interface{}{
		"name":     name,
		"in":       "path",
		"required": true,
		"schema":   map[string]interface{}{"type": "string"},
	}}
}

func generatePaths() map[string]interface{} {
	ok := func(schema string) map[string]interface{} {
		return map[string]interface{}{"200": jsonResponse("OK", schema)}
	}
	created := func(schema string) map[string]interface{} {
		return map[string]interface{}{"201": jsonResponse("Created", schema)}
	}
	noContent := func() map[string]interface{} {
		return map[string]interface{}{"204": jsonResponse("No Content", "")}
	}

	return map[string]interface{}{
		DocumentActionPath: map[string]interface{}{
			"post": withBody(operation("Execute a document action", "documents", map[string]interface{}{
				"200": jsonResponse("Action result", "ActionResponse"),
				"201": jsonResponse("Document created", "ActionResponse"),
			}), "ActionRequest"),
		},
		"/api/v1/plans": map[string]interface{}{
			"get": operation("List plans", "plans", ok("PlanList")),
		},
		"/api/v1/tenant": map[string]interface{}{
			"get": operation("Get the caller's tenant", "tenant", ok("Tenant")),
			"put": withBody(operation("Update the caller's tenant", "tenant", ok("Tenant")), "TenantUpdate"),
		},
		"/api/v1/tenant/usage": map[string]interface{}{
			"get": operation("Get document and seat usage", "tenant", ok("Usage")),
		},
		"/api/v1/tenant/members": map[string]interface{}{
			"get":  operation("List members", "members", ok("ProfileList")),
			"post": withBody(operation("Attach a profile", "members", created("Profile")), "MemberAdd"),
		},
		"/api/v1/tenant/members/{id}": map[string]interface{}{
			"parameters": idParam("id"),
			"delete":     operation("Detach a profile", "members", noContent()),
		},
		"/api/v1/folders": map[string]interface{}{
			"get":  operation("List folders", "folders", ok("FolderList")),
			"post": withBody(operation("Create a folder", "folders", created("Folder")), "Folder"),
		},
		"/api/v1/folders/{id}": map[string]interface{}{
			"parameters": idParam("id"),
			"get":        operation("Get a folder", "folders", ok("Folder")),
			"put":        withBody(operation("Update a folder", "folders", ok("Folder")), "Folder"),
			"delete":     operation("Delete a folder", "folders", noContent()),
		},
		"/api/v1/organizations": map[string]interface{}{
			"get":  operation("List organizations", "organizations", ok("OrganizationList")),
			"post": withBody(operation("Create an organization", "organizations", created("Organization")), "Organization"),
		},
		"/api/v1/organizations/{id}": map[string]interface{}{
			"parameters": idParam("id"),
			"get":        operation("Get an organization", "organizations", ok("Organization")),
			"put":        withBody(operation("Update an organization", "organizations", ok("Organization")), "Organization"),
			"delete":     operation("Delete an organization", "organizations", noContent()),
		},
		"/api/v1/organizations/{id}/members": map[string]interface{}{
			"parameters": idParam("id"),
			"post":       withBody(operation("Add an organization member", "organizations", created("OrganizationMember")), "OrganizationMember"),
		},
		"/api/v1/organizations/{id}/members/{userId}": map[string]interface{}{
			"parameters": append(idParam("id"), idParam("userId")...),
			"delete":     operation("Remove an organization member", "organizations", noContent()),
		},
	}
}

func object(required []string, properties map[string]interface{}) map[string]interface{} {
	schema := map[string]interface{}{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

func str(extra ...string) map[string]interface{} {
	schema := map[string]interface{}{"type": "string"}
	if len(extra) == 1 {
		schema["format"] = extra[0]
	}
	return schema
}

func integer(lo, hi int) map[string]interface{} {
	schema := map[string]interface{}{"type": "integer", "minimum": lo}
	if hi > 0 {
		schema["maximum"] = hi
	}
	return schema
}

func arrayOf(schema string) map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": ref(schema)}
}

func generateComponents() OpenAPIComponents {
	signer := object([]string{"name", "email"}, map[string]interface{}{
		"name":       str(),
		"email":      str("email"),
		"identifier": str(),
	})

	return OpenAPIComponents{
		SecuritySchemes: map[string]interface{}{
			"bearerAuth": map[string]interface{}{
				"type":         "http",
				"scheme":       "bearer",
				"bearerFormat": "JWT",
			},
		},
		Schemas: map[string]interface{}{
			"Signer": signer,
			"ActionRequest": map[string]interface{}{
				"type": "object",
				"oneOf": []interface{}{
					object([]string{"action", "fileName", "fileContent", "signers"}, map[string]interface{}{
						"action":      map[string]interface{}{"type": "string", "enum": []string{"create"}},
						"fileName":    str(),
						"fileContent": str("byte"),
						"signers":     map[string]interface{}{"type": "array", "minItems": 1, "maxItems": 50, "items": ref("Signer")},
						"description": str(),
					}),
					object([]string{"action"}, map[string]interface{}{
						"action": map[string]interface{}{"type": "string", "enum": []string{"list"}},
						"limit":  integer(1, 100),
						"offset": integer(0, 0),
					}),
					object([]string{"action", "documentId"}, map[string]interface{}{
						"action":     map[string]interface{}{"type": "string", "enum": []string{"get", "delete"}},
						"documentId": str("uuid"),
					}),
					object([]string{"action", "documentId", "signer"}, map[string]interface{}{
						"action":     map[string]interface{}{"type": "string", "enum": []string{"add-signer"}},
						"documentId": str("uuid"),
						"signer":     ref("Signer"),
						"step":       integer(1, 0),
					}),
				},
			},
			"ActionResponse": object([]string{"data"}, map[string]interface{}{
				"data":      map[string]interface{}{},
				"fromCache": map[string]interface{}{"type": "boolean"},
				"cached":    map[string]interface{}{"type": "boolean"},
			}),
			"Error": object([]string{"error", "status", "timestamp"}, map[string]interface{}{
				"error":     str(),
				"code":      str(),
				"details":   map[string]interface{}{},
				"status":    map[string]interface{}{"type": "integer"},
				"timestamp": str("date-time"),
			}),
			"Plan": object(nil, map[string]interface{}{
				"tier":       str(),
				"name":       str(),
				"price":      str(),
				"seat_limit": map[string]interface{}{"type": "integer"},
				"documents": object(nil, map[string]interface{}{
					"kind":  map[string]interface{}{"type": "string", "enum": []string{"lifetime", "monthly", "unlimited"}},
					"limit": map[string]interface{}{"type": "integer"},
				}),
			}),
			"PlanList": arrayOf("Plan"),
			"Tenant": object(nil, map[string]interface{}{
				"id":     str("uuid"),
				"name":   str(),
				"tax_id": str(),
				"plan":   map[string]interface{}{"type": "string", "enum": planNames(), "readOnly": true},
			}),
			"TenantUpdate": object([]string{"name"}, map[string]interface{}{
				"name":   str(),
				"tax_id": str(),
			}),
			"Usage": object(nil, map[string]interface{}{
				"plan":      ref("Plan"),
				"documents": map[string]interface{}{"type": "object"},
				"seats":     map[string]interface{}{"type": "object"},
			}),
			"Profile": object(nil, map[string]interface{}{
				"id":           str("uuid"),
				"display_name": str(),
				"email":        str("email"),
				"tenant_id":    str("uuid"),
			}),
			"ProfileList": arrayOf("Profile"),
			"MemberAdd": object([]string{"profile_id"}, map[string]interface{}{
				"profile_id": str("uuid"),
			}),
			"Folder": object([]string{"name"}, map[string]interface{}{
				"id":        str("uuid"),
				"name":      str(),
				"parent_id": str("uuid"),
				"color":     str(),
			}),
			"FolderList": arrayOf("Folder"),
			"Organization": object([]string{"name"}, map[string]interface{}{
				"id":                       str("uuid"),
				"name":                     str(),
				"provider_organization_id": str(),
			}),
			"OrganizationList": arrayOf("Organization"),
			"OrganizationMember": object([]string{"user_id"}, map[string]interface{}{
				"user_id": str("uuid"),
				"role":    map[string]interface{}{"type": "string", "enum": []string{"owner", "admin", "user"}},
			}),
		},
	}
}

func planNames() []string {
	plans := models.AllPlans()
	names := make([]string, 0, len(plans))
	for _, plan := range plans {
		names = append(names, plan.Tier.String())
	}
	return names
}
