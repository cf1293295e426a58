// Package catalog loads a card catalog and selects cards to synthesize.
package catalog

// Card is the subset of a catalog entry the generator needs.
type Card struct {
	Name          string            `json:"name"`
	Layout        string            `json:"layout"`
	IsFunny       bool              `json:"is_funny"`
	ImageURIs     *ImageURIs        `json:"image_uris,omitempty"`
	CardFaces     []CardFace        `json:"card_faces,omitempty"`
	Legalities    map[string]string `json:"legalities"`
	BorderColor   string            `json:"border_color"`
	ColorIdentity []string          `json:"color_identity"`
}

// ImageURIs lists the renditions of a card image.
type ImageURIs struct {
	PNG    string `json:"png,omitempty"`
	Normal string `json:"normal,omitempty"`
	Large  string `json:"large,omitempty"`
	Small  string `json:"small,omitempty"`
}

// CardFace is one face of a multi-faced card.
type CardFace struct {
	Name      string     `json:"name"`
	ImageURIs *ImageURIs `json:"image_uris,omitempty"`
}

// ImageURL returns the preferred image URL, png first, then normal.
func (c Card) ImageURL() string {
	if c.ImageURIs == nil {
		return ""
	}
	if c.ImageURIs.PNG != "" {
		return c.ImageURIs.PNG
	}
	return c.ImageURIs.Normal
}
