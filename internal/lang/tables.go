package lang

import "sync"

// The tables below describe what Crest adds on top of C. Plain C keywords are
// deliberately absent from Keywords: the analyzer already knows those, and
// MentionsDialect must only fire on Crest-specific syntax.

var keywordTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "kernel", Kind: KindKeyword, Detail: "function qualifier",
			Doc: "Marks a function as a kernel entry point. Kernel functions are scheduled by the runtime and may not be called directly."},
		{Label: "uniform", Kind: KindKeyword, Detail: "storage qualifier",
			Doc: "Read-only value shared by every invocation of a kernel."},
		{Label: "buffer", Kind: KindKeyword, Detail: "storage qualifier",
			Doc: "Mutable storage block visible to all invocations."},
		{Label: "shared", Kind: KindKeyword, Detail: "storage qualifier",
			Doc: "Storage shared within one workgroup."},
		{Label: "stage", Kind: KindKeyword, Detail: "pipeline qualifier",
			Doc: "Binds a kernel to a named pipeline stage."},
	}
})

var typeTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "vec2", Kind: KindType, Detail: "2-component float vector",
			Doc: "vec2 packs two floats. Components are accessed as .x and .y."},
		{Label: "vec3", Kind: KindType, Detail: "3-component float vector",
			Doc: "vec3 packs three floats. Components are accessed as .x, .y and .z."},
		{Label: "vec4", Kind: KindType, Detail: "4-component float vector",
			Doc: "vec4 packs four floats. Components are accessed as .x, .y, .z and .w."},
		{Label: "mat3", Kind: KindType, Detail: "3x3 float matrix",
			Doc: "Column-major 3x3 matrix of floats."},
		{Label: "mat4", Kind: KindType, Detail: "4x4 float matrix",
			Doc: "Column-major 4x4 matrix of floats."},
	}
})

var builtinTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "dot", Kind: KindBuiltin, Detail: "float dot(vecN a, vecN b)",
			Doc: "Dot product of two vectors of the same width."},
		{Label: "cross", Kind: KindBuiltin, Detail: "vec3 cross(vec3 a, vec3 b)",
			Doc: "Cross product of two vec3 values."},
		{Label: "length", Kind: KindBuiltin, Detail: "float length(vecN v)",
			Doc: "Euclidean length of a vector."},
		{Label: "normalize", Kind: KindBuiltin, Detail: "vecN normalize(vecN v)",
			Doc: "Returns v scaled to unit length. Undefined for the zero vector."},
		{Label: "clamp", Kind: KindBuiltin, Detail: "T clamp(T v, T lo, T hi)",
			Doc: "Constrains v to the closed range [lo, hi]."},
		{Label: "mix", Kind: KindBuiltin, Detail: "T mix(T a, T b, float t)",
			Doc: "Linear interpolation between a and b by t."},
		{Label: "barrier", Kind: KindBuiltin, Detail: "void barrier(void)",
			Doc: "Synchronizes all invocations of the current workgroup."},
	}
})

var constantTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "CREST_PI", Kind: KindConstant, Detail: "3.14159265358979323846",
			Doc: "Pi, defined in <crest/math.h>."},
		{Label: "CREST_EPSILON", Kind: KindConstant, Detail: "1e-6f",
			Doc: "Default tolerance for float comparisons, defined in <crest/math.h>."},
		{Label: "CREST_VERSION", Kind: KindConstant, Detail: "integer version macro",
			Doc: "Encodes the toolchain version as major*10000 + minor*100 + patch."},
	}
})

var headerTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "crest/std.h", Kind: KindHeader, Detail: "core runtime declarations"},
		{Label: "crest/math.h", Kind: KindHeader, Detail: "vector and scalar math"},
		{Label: "crest/vec.h", Kind: KindHeader, Detail: "vector type definitions"},
		{Label: "crest/io.h", Kind: KindHeader, Detail: "buffer input/output helpers"},
		{Label: "crest/atomic.h", Kind: KindHeader, Detail: "atomic operations"},
	}
})

var accessorTable = sync.OnceValue(func() []Entry {
	return []Entry{
		{Label: "x", Kind: KindAccessor, Detail: "first component"},
		{Label: "y", Kind: KindAccessor, Detail: "second component"},
		{Label: "z", Kind: KindAccessor, Detail: "third component (vec3, vec4)"},
		{Label: "w", Kind: KindAccessor, Detail: "fourth component (vec4)"},
	}
})

func Keywords() []Entry  { return keywordTable() }
func Types() []Entry     { return typeTable() }
func Builtins() []Entry  { return builtinTable() }
func Constants() []Entry { return constantTable() }
func Headers() []Entry   { return headerTable() }
func Accessors() []Entry { return accessorTable() }

// General returns the full ContextGeneral item set in stable order.
func General() []Entry {
	sets := [][]Entry{Keywords(), Types(), Builtins(), Constants()}
	total := 0
	for _, s := range sets {
		total += len(s)
	}
	out := make([]Entry, 0, total)
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}
