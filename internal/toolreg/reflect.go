package toolreg

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"

	"github.com/invopop/jsonschema"
)

// reflector mirrors internal/config/schema.go's Reflector configuration,
// generalized from reflecting one config struct to reflecting every
// annotated tool's parameter struct.
var reflector = &jsonschema.Reflector{
	FieldNameTag: "json",
}

// Reflect builds a Descriptor and the ParamSpec list used for argument
// marshalling from a zero-value pointer to a parameter struct, e.g.
// Reflect("add", "adds two numbers", &AddParams{}). Field order follows
// struct field declaration order. A field is required unless it is tagged
// `tool:"optional"` or is itself a pointer type; invopop's reflector
// alone only honors its own jsonschema:"required" tag, so the `tool` tag
// is layered on top of its output rather than replacing it.
func Reflect(name, description string, paramsStruct any) (Descriptor, []ParamSpec, error) {
	t := reflect.TypeOf(paramsStruct)
	if t == nil || t.Kind() != reflect.Ptr || t.Elem().Kind() != reflect.Struct {
		return Descriptor{}, nil, fmt.Errorf("toolreg: Reflect requires a pointer to a struct, got %T", paramsStruct)
	}
	structType := t.Elem()

	schema := reflector.Reflect(paramsStruct)
	schemaBytes, err := json.Marshal(schema)
	if err != nil {
		return Descriptor{}, nil, fmt.Errorf("toolreg: marshal reflected schema: %w", err)
	}

	params, err := paramsFromStruct(structType)
	if err != nil {
		return Descriptor{}, nil, err
	}

	return Descriptor{Name: name, Description: description, InputSchema: schemaBytes}, params, nil
}

// RegisterReflected reflects paramsStruct's type and registers the
// resulting descriptor and handler on r in one step.
func RegisterReflected(r *Registry, name, description string, paramsStruct any, handler HandlerFunc) error {
	desc, params, err := Reflect(name, description, paramsStruct)
	if err != nil {
		return err
	}
	compiled, err := compileSchema(name, desc.InputSchema)
	if err != nil {
		return fmt.Errorf("toolreg: tool %q: %w", name, err)
	}
	r.mu.Lock()
	if _, exists := r.entries[name]; !exists {
		r.names = append(r.names, name)
	}
	r.entries[name] = &entry{desc: desc, params: params, handler: handler, schema: compiled}
	r.mu.Unlock()
	return nil
}

func paramsFromStruct(t reflect.Type) ([]ParamSpec, error) {
	params := make([]ParamSpec, 0, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty := jsonFieldName(f)
		if name == "-" {
			continue
		}
		toolTag := f.Tag.Get("tool")
		optional := omitempty || strings.Contains(toolTag, "optional") || f.Type.Kind() == reflect.Ptr

		kind, items, props, err := fieldKind(f.Type)
		if err != nil {
			return nil, fmt.Errorf("toolreg: field %s: %w", f.Name, err)
		}

		spec := ParamSpec{
			Name:        name,
			Kind:        kind,
			Description: f.Tag.Get("description"),
			Required:    !optional,
			Items:       items,
			Properties:  props,
		}
		if enumTag := f.Tag.Get("enum"); enumTag != "" {
			spec.Kind = KindEnum
			spec.EnumValues = strings.Split(enumTag, ",")
		}
		params = append(params, spec)
	}
	return params, nil
}

func jsonFieldName(f reflect.StructField) (name string, omitempty bool) {
	tag := f.Tag.Get("json")
	if tag == "" {
		return f.Name, false
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" {
			omitempty = true
		}
	}
	return name, omitempty
}

func fieldKind(t reflect.Type) (Kind, *ParamSpec, []ParamSpec, error) {
	if t.Kind() == reflect.Ptr {
		return fieldKind(t.Elem())
	}
	switch t.Kind() {
	case reflect.String:
		return KindString, nil, nil, nil
	case reflect.Bool:
		return KindBoolean, nil, nil, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return KindInteger, nil, nil, nil
	case reflect.Float32, reflect.Float64:
		return KindNumber, nil, nil, nil
	case reflect.Slice, reflect.Array:
		itemKind, itemItems, itemProps, err := fieldKind(t.Elem())
		if err != nil {
			return "", nil, nil, err
		}
		return KindArray, &ParamSpec{Kind: itemKind, Items: itemItems, Properties: itemProps}, nil, nil
	case reflect.Struct:
		props, err := paramsFromStruct(t)
		if err != nil {
			return "", nil, nil, err
		}
		return KindObject, nil, props, nil
	case reflect.Map:
		return KindObject, nil, nil, nil
	default:
		return "", nil, nil, fmt.Errorf("unsupported field type %s", t.Kind())
	}
}

// Container is a minimal dependency-injection container used to build
// tool-owning structs before bulk registration: collaborators (an HTTP
// client, a secrets provider) are Provide'd once, then Build constructs a
// new instance of a struct type, populating any exported field whose type
// exactly matches a provided value.
type Container struct {
	values map[reflect.Type]reflect.Value
}

// NewContainer returns an empty Container.
func NewContainer() *Container {
	return &Container{values: make(map[reflect.Type]reflect.Value)}
}

// Provide registers a collaborator value to be injected by type.
func (c *Container) Provide(v any) {
	c.values[reflect.TypeOf(v)] = reflect.ValueOf(v)
}

// Build constructs a new *T for the given struct type, injecting any
// exported field whose type was Provide'd.
func (c *Container) Build(t reflect.Type) (any, error) {
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("toolreg: Container.Build requires a struct type, got %s", t.Kind())
	}
	instance := reflect.New(t)
	elem := instance.Elem()
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		if dep, ok := c.values[f.Type]; ok {
			elem.Field(i).Set(dep)
		}
	}
	return instance.Interface(), nil
}
