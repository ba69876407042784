package graph

import "strings"

// Capability is a bit set of optional behaviours detected on a Unit during extraction.
// Resolvers switch on these flags instead of probing the unit at runtime.
type Capability uint32

const (
	CapFormRequest Capability = 1 << iota
	CapValidationRule
	CapJSONResource
	CapResourceCollection
	CapSchemaProvider
	CapOpenAPIAnnotated
	CapExampleProvider
	CapExamplesProvider
	CapController
)

var capabilityNames = []struct {
	cap  Capability
	name string
}{
	{CapFormRequest, "formRequest"},
	{CapValidationRule, "validationRule"},
	{CapJSONResource, "jsonResource"},
	{CapResourceCollection, "resourceCollection"},
	{CapSchemaProvider, "schemaProvider"},
	{CapOpenAPIAnnotated, "openAPIAnnotated"},
	{CapExampleProvider, "exampleProvider"},
	{CapExamplesProvider, "examplesProvider"},
	{CapController, "controller"},
}

// Has reports whether all bits of c are set.
func (c Capability) Has(other Capability) bool {
	return other != 0 && c&other == other
}

func (c Capability) String() string {
	var names []string
	for _, item := range capabilityNames {
		if c.Has(item.cap) {
			names = append(names, item.name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}
