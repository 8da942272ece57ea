package arcgis

// Feature is one record returned by a layer query.
type Feature struct {
	Attributes map[string]any `json:"attributes"`
	Geometry   *Geometry      `json:"geometry,omitempty"`
}

// Geometry is a point geometry. Only point layers are supported.
type Geometry struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Field describes one attribute field on a layer.
type Field struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Alias    string `json:"alias,omitempty"`
	Length   int    `json:"length,omitempty"`
	Nullable bool   `json:"nullable"`
}

// LayerInfo is the subset of layer metadata the pipeline needs.
type LayerInfo struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Fields []Field `json:"fields"`
}

// HasField reports whether the layer defines the named attribute field.
func (l *LayerInfo) HasField(name string) bool {
	for _, f := range l.Fields {
		if f.Name == name {
			return true
		}
	}
	return false
}

// Query specifies a layer query. Zero values are omitted from the request so
// the service applies its own defaults.
type Query struct {
	Where          string
	OutFields      []string
	OrderBy        []string
	ReturnGeometry bool
	Offset         int
	Limit          int
}

// QueryResult is the page of features matching a Query.
type QueryResult struct {
	ObjectIDField string    `json:"objectIdFieldName"`
	Features      []Feature `json:"features"`
	// ExceededLimit is set when the service truncated the page; callers
	// should re-query with an advanced offset.
	ExceededLimit bool `json:"exceededTransferLimit"`
}

// Update sets attribute values on one existing feature.
type Update struct {
	Attributes map[string]any `json:"attributes"`
}

// EditResult is the per-record outcome of an applyEdits call.
type EditResult struct {
	ObjectID int64 `json:"objectId"`
	Success  bool  `json:"success"`
	Error    *struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"error,omitempty"`
}

type queryResponse struct {
	QueryResult
	Count *int         `json:"count,omitempty"`
	Error *serverError `json:"error,omitempty"`
}

type editResponse struct {
	UpdateResults []EditResult `json:"updateResults"`
	Error         *serverError `json:"error,omitempty"`
}

type layerResponse struct {
	LayerInfo
	Error *serverError `json:"error,omitempty"`
}

type adminResponse struct {
	Success bool         `json:"success"`
	Error   *serverError `json:"error,omitempty"`
}
