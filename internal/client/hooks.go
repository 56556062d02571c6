package client

// RequestCustomizer takes over request preparation. When one is set, the
// built-in credential handling is skipped for that request.
type RequestCustomizer interface {
	CustomizeRequest(req *Descriptor) error
}

// ResponseInterceptor sees the full response before the payload is handed
// back. A non-nil return value is forwarded as Response.Value.
type ResponseInterceptor interface {
	InterceptResponse(resp *Response) (any, error)
}

// CustomizeFunc adapts a function to RequestCustomizer.
type CustomizeFunc func(req *Descriptor) error

func (f CustomizeFunc) CustomizeRequest(req *Descriptor) error {
	return f(req)
}

// InterceptFunc adapts a function to ResponseInterceptor.
type InterceptFunc func(resp *Response) (any, error)

func (f InterceptFunc) InterceptResponse(resp *Response) (any, error) {
	return f(resp)
}

// Hooks groups the optional per-call or process-wide callbacks.
type Hooks struct {
	Customizer  RequestCustomizer
	Interceptor ResponseInterceptor
}

// withDefaults fills unset hooks from defaults. Per-call hooks win.
func (h Hooks) withDefaults(defaults Hooks) Hooks {
	if h.Customizer == nil {
		h.Customizer = defaults.Customizer
	}
	if h.Interceptor == nil {
		h.Interceptor = defaults.Interceptor
	}
	return h
}
