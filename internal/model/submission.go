package model

// Classification is the triage state of a submission's flag field.
// The empty string maps to an unset (NULL or '') attribute on the layer.
type Classification string

const (
	Unclassified Classification = ""
	Emergency    Classification = "EMERGENCY"
	OK           Classification = "OK"
)

// ClassificationFor converts a classifier verdict into the value written
// back to the layer.
func ClassificationFor(emergency bool) Classification {
	if emergency {
		return Emergency
	}
	return OK
}

// IsSet reports whether the flag field has been written.
func (c Classification) IsSet() bool {
	return c == Emergency || c == OK
}

// Point is a feature geometry in the layer's spatial reference.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Submission is one citizen report read from the feature layer. Only the
// identifier and note are fetched during triage; geometry is populated by
// export queries.
type Submission struct {
	ObjectID int64          `json:"object_id"`
	Note     string         `json:"note"`
	Flag     Classification `json:"flag,omitempty"`
	Geometry *Point         `json:"geometry,omitempty"`
}
