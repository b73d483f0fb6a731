package source

import "github.com/dev-tams/newsdrop/internal/httputil"

func defaultClient() *httputil.Client {
	return httputil.NewClient(httputil.Options{UserAgent: "newsdrop-test"})
}
