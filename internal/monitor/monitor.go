// Package monitor validates inbound request bodies against JSON schema contracts.
package monitor

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// PrepareSchema is the contract of POST /api/payments/prepare.
const PrepareSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "PreparePaymentRequest",
	"type": "object",
	"properties": {
		"productId": { "type": "integer", "minimum": 1 },
		"pgType":    { "type": "string", "minLength": 1 },
		"returnUrl": { "type": "string" },
		"memo":      { "type": "string", "maxLength": 500 },
		"metadata":  { "type": "object" }
	},
	"required": ["productId", "pgType"]
}`

// ReturnCallbackSchema is the contract of the provider return callback form.
const ReturnCallbackSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"title": "PaymentReturnCallback",
	"type": "object",
	"properties": {
		"orderId":        { "type": "string", "minLength": 1 },
		"tid":            { "type": "string" },
		"authToken":      { "type": "string" },
		"authResultCode": { "type": "string", "minLength": 1 },
		"authResultMsg":  { "type": "string" },
		"amount":         { "type": "string", "pattern": "^[0-9]+$" }
	},
	"required": ["orderId", "authResultCode"]
}`

// ContractMonitor validates documents against one compiled JSON schema.
type ContractMonitor struct {
	schema *gojsonschema.Schema
}

// NewContractMonitor compiles the schema file at schemaPath.
func NewContractMonitor(schemaPath string) (*ContractMonitor, error) {
	return newContractMonitor(gojsonschema.NewReferenceLoader("file://"+schemaPath), schemaPath)
}

// NewContractMonitorFromString compiles an inline schema.
func NewContractMonitorFromString(schema string) (*ContractMonitor, error) {
	return newContractMonitor(gojsonschema.NewStringLoader(schema), "inline")
}

// MustContractMonitor is NewContractMonitorFromString for package-level schemas.
func MustContractMonitor(schema string) *ContractMonitor {
	cm, err := NewContractMonitorFromString(schema)
	if err != nil {
		panic(err)
	}
	return cm
}

func newContractMonitor(loader gojsonschema.JSONLoader, name string) (*ContractMonitor, error) {
	schema, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, fmt.Errorf("error loading or compiling schema %s: %w", name, err)
	}
	return &ContractMonitor{schema: schema}, nil
}

// Validate checks a raw JSON body. It returns the validation errors when the
// body is well-formed but invalid, and an error when it is not JSON at all.
func (cm *ContractMonitor) Validate(requestBody []byte) (bool, []string, error) {
	return cm.validate(gojsonschema.NewBytesLoader(requestBody))
}

// ValidateValue checks an already decoded value, such as a parsed form.
func (cm *ContractMonitor) ValidateValue(v any) (bool, []string, error) {
	return cm.validate(gojsonschema.NewGoLoader(v))
}

func (cm *ContractMonitor) validate(doc gojsonschema.JSONLoader) (bool, []string, error) {
	result, err := cm.schema.Validate(doc)
	if err != nil {
		return false, nil, fmt.Errorf("error during validation: %w", err)
	}
	if result.Valid() {
		return true, nil, nil
	}
	errs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		errs = append(errs, desc.String())
	}
	return false, errs, nil
}

// FormatErrors joins validation errors into one message.
func FormatErrors(validationErrors []string) string {
	if len(validationErrors) == 0 {
		return ""
	}
	return "Validation errors: " + strings.Join(validationErrors, "; ")
}
