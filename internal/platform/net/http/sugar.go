package http

import "net/http"

// JSONHandlerNoBody adapts a handler that takes no request body
// and returns (data, err) into a platform Handler
func JSONHandlerNoBody(h func(*http.Request) (any, error)) Handler {
	return func(w http.ResponseWriter, r *http.Request) {
		out, err := h(r)
		if err != nil {
			RespondError(w, r, err)
			return
		}
		RespondOK(w, r, out)
	}
}

// GetJSON mounts a pure JSON handler for GET
func GetJSON(r Router, path string, h func(*http.Request) (any, error)) {
	r.Get(path, JSONHandlerNoBody(h))
}

// PostJSON mounts a pure JSON handler for POST
// daemon POST endpoints are triggers and carry no request body
func PostJSON(r Router, path string, h func(*http.Request) (any, error)) {
	r.Post(path, JSONHandlerNoBody(h))
}
