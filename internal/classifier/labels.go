package classifier

// Reference classes of the bundled model.
const (
	LabelCommonPipistrelle = "Zwergfledermaus"
	LabelDaubentonsBat     = "Wasserfledermaus"
	LabelNoctule           = "Großer Abendsegler"
	LabelBackground        = "Hintergrundgeräusche"
)

// DefaultLabels is the label order of the reference model.
var DefaultLabels = []string{
	LabelCommonPipistrelle,
	LabelDaubentonsBat,
	LabelNoctule,
	LabelBackground,
}

// Species describes a label.
type Species struct {
	CommonName     string `json:"commonName"`
	ScientificName string `json:"scientificName,omitempty"`
	Bat            bool   `json:"bat"`
}

// Taxonomy maps reference labels to species details.
var Taxonomy = map[string]Species{
	LabelCommonPipistrelle: {CommonName: "Common pipistrelle", ScientificName: "Pipistrellus pipistrellus", Bat: true},
	LabelDaubentonsBat:     {CommonName: "Daubenton's bat", ScientificName: "Myotis daubentonii", Bat: true},
	LabelNoctule:           {CommonName: "Common noctule", ScientificName: "Nyctalus noctula", Bat: true},
	LabelBackground:        {CommonName: "Background noise"},
}

// Lookup returns the taxonomy entry of label. Unknown labels are reported as
// bats with only a common name.
func Lookup(label string) Species {
	if s, ok := Taxonomy[label]; ok {
		return s
	}
	return Species{CommonName: label, Bat: true}
}
