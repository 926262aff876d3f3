// Package api embeds the service's OpenAPI document.
package api

import _ "embed"

//go:embed openapi.yaml
var OpenAPI []byte
