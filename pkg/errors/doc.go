// Package errors defines the structured error taxonomy shared by the
// registry, compiler, and renderer.
//
// Every failure crossing the tplguard boundary is an *Error carrying a Kind:
//
//	ParseError             template syntax, or an undecodable render context
//	MissingDependency      include/extends/import of an unknown template
//	SchemaValidationError  invalid component schema, or unauthorized variable
//	CompileError           any other engine failure during compilation
//	TemplateNotFound       render of a name that is not compiled
//	RenderError            engine failure while rendering
//
// Callers branch with Is or KindOf:
//
//	if errors.Is(err, errors.KindMissingDependency) {
//	    e, _ := errors.As(err)
//	    fmt.Println(e.MissingDependencies)
//	}
package errors
