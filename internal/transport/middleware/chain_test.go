package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func tagging(tag string, trace *[]string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			*trace = append(*trace, tag+">")
			next.ServeHTTP(w, r)
			*trace = append(*trace, "<"+tag)
		})
	}
}

func TestChain(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		mws  func(trace *[]string) []Middleware
		want []string
	}{
		{
			name: "outermost first",
			mws: func(trace *[]string) []Middleware {
				return []Middleware{tagging("auth", trace), tagging("limit", trace)}
			},
			want: []string{"auth>", "limit>", "handler", "<limit", "<auth"},
		},
		{
			name: "nil entries skipped",
			mws: func(trace *[]string) []Middleware {
				return []Middleware{nil, tagging("role", trace), nil}
			},
			want: []string{"role>", "handler", "<role"},
		},
		{
			name: "empty",
			mws:  func(*[]string) []Middleware { return nil },
			want: []string{"handler"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var trace []string
			handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				trace = append(trace, "handler")
				w.WriteHeader(http.StatusNoContent)
			})

			rec := httptest.NewRecorder()
			Chain(tt.mws(&trace)...)(handler).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			assert.Equal(t, tt.want, trace)
			assert.Equal(t, http.StatusNoContent, rec.Code)
		})
	}
}
