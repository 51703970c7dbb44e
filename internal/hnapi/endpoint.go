package hnapi

import (
	"fmt"
	"strings"
)

// ListEndpoint names a story list resource.
type ListEndpoint string

const (
	EndpointTopStories  ListEndpoint = "topstories"
	EndpointNewStories  ListEndpoint = "newstories"
	EndpointBestStories ListEndpoint = "beststories"
	EndpointAskStories  ListEndpoint = "askstories"
	EndpointShowStories ListEndpoint = "showstories"
	EndpointJobStories  ListEndpoint = "jobstories"
)

// ListEndpoints returns every story list in a stable order.
func ListEndpoints() []ListEndpoint {
	return []ListEndpoint{
		EndpointTopStories,
		EndpointNewStories,
		EndpointBestStories,
		EndpointAskStories,
		EndpointShowStories,
		EndpointJobStories,
	}
}

// Path returns the resource path, e.g. "/topstories.json".
func (e ListEndpoint) Path() string {
	return "/" + string(e) + ".json"
}

// MaxLen is the documented upper bound on the list length.
func (e ListEndpoint) MaxLen() int {
	switch e {
	case EndpointAskStories, EndpointShowStories, EndpointJobStories:
		return 200
	default:
		return 500
	}
}

// ParseListEndpoint accepts either the short ("top") or full ("topstories") name.
func ParseListEndpoint(s string) (ListEndpoint, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	name = strings.TrimSuffix(name, ".json")
	if !strings.HasSuffix(name, "stories") {
		name += "stories"
	}
	for _, e := range ListEndpoints() {
		if string(e) == name {
			return e, nil
		}
	}
	return "", fmt.Errorf("unknown list endpoint %q", s)
}

func itemPath(id int64) string {
	return fmt.Sprintf("/item/%d.json", id)
}
