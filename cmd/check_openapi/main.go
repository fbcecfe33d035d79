// Command check_openapi verifies that api/openapi.yaml documents exactly the
// routes the server registers and that its schemas match the JSON shapes the
// server emits.
package main

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"libraryapi/internal/server"
	"libraryapi/pkg/domain"
)

type openAPIDoc struct {
	Paths      map[string]map[string]yaml.Node `yaml:"paths"`
	Components struct {
		Schemas map[string]schema `yaml:"schemas"`
	} `yaml:"components"`
}

type schema struct {
	Type       string            `yaml:"type"`
	Ref        string            `yaml:"$ref"`
	Properties map[string]schema `yaml:"properties"`
	Required   []string          `yaml:"required"`
	Items      *schema           `yaml:"items"`
}

var httpMethods = map[string]bool{
	"get": true, "put": true, "post": true, "delete": true,
	"patch": true, "head": true, "options": true, "trace": true,
}

// schemaTypes pairs documented schemas with the Go types serialized for them.
var schemaTypes = map[string]reflect.Type{
	"Book":     reflect.TypeOf(domain.Book{}),
	"BookPage": reflect.TypeOf(domain.Page[domain.Book]{}),
	"Loan":     reflect.TypeOf(domain.Loan{}),
}

func main() {
	if len(os.Args) != 2 {
		fmt.Fprintf(os.Stderr, "usage: %s <openapi.yaml>\n", os.Args[0])
		os.Exit(2)
	}
	if err := run(os.Args[1]); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		os.Exit(1)
	}
	fmt.Println("OpenAPI consistency check passed.")
}

func run(path string) error {
	doc, err := loadDoc(path)
	if err != nil {
		return err
	}
	if err := checkRoutes(doc, server.RoutePatterns()); err != nil {
		return err
	}
	errResp, err := getSchema(doc, "ErrorResponse")
	if err != nil {
		return err
	}
	if err := validateErrorResponse(errResp); err != nil {
		return err
	}
	names := make([]string, 0, len(schemaTypes))
	for name := range schemaTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s, err := getSchema(doc, name)
		if err != nil {
			return err
		}
		if err := ensureSameProperties(name, s, schemaTypes[name]); err != nil {
			return err
		}
	}
	return nil
}

func loadDoc(path string) (openAPIDoc, error) {
	var doc openAPIDoc
	raw, err := os.ReadFile(path)
	if err != nil {
		return doc, fmt.Errorf("read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return doc, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// checkRoutes fails on any route missing from the document and on any
// documented operation the server does not serve.
func checkRoutes(doc openAPIDoc, patterns []string) error {
	documented := make(map[string]bool)
	for path, item := range doc.Paths {
		for key := range item {
			if httpMethods[key] {
				documented[strings.ToUpper(key)+" "+path] = true
			}
		}
	}
	served := makeSet(patterns)

	var missing, stale []string
	for p := range served {
		if !documented[p] {
			missing = append(missing, p)
		}
	}
	for p := range documented {
		if !served[p] {
			stale = append(stale, p)
		}
	}
	sort.Strings(missing)
	sort.Strings(stale)
	switch {
	case len(missing) > 0:
		return fmt.Errorf("routes missing from openapi: %s", strings.Join(missing, ", "))
	case len(stale) > 0:
		return fmt.Errorf("openapi documents unknown routes: %s", strings.Join(stale, ", "))
	}
	return nil
}

func getSchema(doc openAPIDoc, name string) (schema, error) {
	if doc.Components.Schemas == nil {
		return schema{}, errors.New("components.schemas missing")
	}
	s, ok := doc.Components.Schemas[name]
	if !ok {
		return schema{}, fmt.Errorf("schema %q missing", name)
	}
	return s, nil
}

func validateErrorResponse(s schema) error {
	if s.Type != "object" {
		return errors.New("ErrorResponse must be object")
	}
	required := makeSet(s.Required)
	for _, field := range []string{"errors", "code"} {
		if !required[field] {
			return fmt.Errorf("ErrorResponse.required must include %q", field)
		}
	}
	errorsProp, ok := s.Properties["errors"]
	if !ok || errorsProp.Type != "array" || errorsProp.Items == nil || errorsProp.Items.Type != "string" {
		return errors.New("ErrorResponse.errors must be an array of strings")
	}
	if p, ok := s.Properties["code"]; !ok || p.Type != "string" {
		return errors.New("ErrorResponse.code must be string")
	}
	if p, ok := s.Properties["requestId"]; !ok || p.Type != "string" {
		return errors.New("ErrorResponse.requestId must be string")
	}
	return nil
}

// ensureSameProperties compares documented properties with the JSON names of
// t's exported fields.
func ensureSameProperties(name string, s schema, t reflect.Type) error {
	want := jsonFields(t)
	got := make([]string, 0, len(s.Properties))
	for prop := range s.Properties {
		got = append(got, prop)
	}
	sort.Strings(got)
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("%s properties mismatch: documented %v, served %v", name, got, want)
	}
	return nil
}

func jsonFields(t reflect.Type) []string {
	var out []string
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		switch name {
		case "-":
			continue
		case "":
			name = f.Name
		}
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func makeSet(items []string) map[string]bool {
	out := make(map[string]bool, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out[item] = true
	}
	return out
}
