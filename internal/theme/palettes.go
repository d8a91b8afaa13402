package theme

// Colors is the token set a palette carries. Values are CSS color or
// gradient strings consumed verbatim by the presentation layer.
type Colors struct {
	Background          string `json:"background"`
	Foreground          string `json:"foreground"`
	Card                string `json:"card"`
	CardForeground      string `json:"cardForeground"`
	Primary             string `json:"primary"`
	PrimaryForeground   string `json:"primaryForeground"`
	Secondary           string `json:"secondary"`
	SecondaryForeground string `json:"secondaryForeground"`
	Muted               string `json:"muted"`
	MutedForeground     string `json:"mutedForeground"`
	Accent              string `json:"accent"`
	AccentForeground    string `json:"accentForeground"`
	Border              string `json:"border"`
	Input               string `json:"input"`
	Ring                string `json:"ring"`
}

// Palette is one catalog entry.
type Palette struct {
	Name        string `json:"name"`
	Value       string `json:"value"`
	Preview     string `json:"preview"`
	Description string `json:"description"`
	Colors      Colors `json:"colors"`
}

// DefaultPalette is the value applied when no theme was saved.
const DefaultPalette = "ocean-deep"

// Catalog is the fixed set of selectable palettes. The first entry is
// the fallback when a saved name no longer resolves.
var Catalog = []Palette{
	{
		Name:        "Soft Sky",
		Value:       "ocean-deep",
		Preview:     "#e0f2fe",
		Description: "Gentle sky blue tones",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #f0f9ff 0%, #e0f2fe 50%, #bae6fd 100%)",
			Foreground:          "#0c4a6e",
			Card:                "rgba(255, 255, 255, 0.9)",
			CardForeground:      "#075985",
			Primary:             "linear-gradient(135deg, #7dd3fc 0%, #38bdf8 50%, #0ea5e9 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(186, 230, 253, 0.5)",
			SecondaryForeground: "#0369a1",
			Muted:               "rgba(224, 242, 254, 0.6)",
			MutedForeground:     "#0284c7",
			Accent:              "rgba(125, 211, 252, 0.3)",
			AccentForeground:    "#0369a1",
			Border:              "rgba(186, 230, 253, 0.4)",
			Input:               "rgba(255, 255, 255, 0.8)",
			Ring:                "#38bdf8",
		},
	},
	{
		Name:        "Mint Fresh",
		Value:       "emerald-forest",
		Preview:     "#d1fae5",
		Description: "Soft mint green",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #f0fdf4 0%, #dcfce7 50%, #bbf7d0 100%)",
			Foreground:          "#14532d",
			Card:                "rgba(255, 255, 255, 0.9)",
			CardForeground:      "#166534",
			Primary:             "linear-gradient(135deg, #86efac 0%, #4ade80 50%, #22c55e 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(187, 247, 208, 0.5)",
			SecondaryForeground: "#15803d",
			Muted:               "rgba(220, 252, 231, 0.6)",
			MutedForeground:     "#16a34a",
			Accent:              "rgba(134, 239, 172, 0.3)",
			AccentForeground:    "#15803d",
			Border:              "rgba(187, 247, 208, 0.4)",
			Input:               "rgba(255, 255, 255, 0.8)",
			Ring:                "#4ade80",
		},
	},
	{
		Name:        "Lavender Dream",
		Value:       "royal-purple",
		Preview:     "#e9d5ff",
		Description: "Soft lavender purple",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #faf5ff 0%, #f3e8ff 50%, #e9d5ff 100%)",
			Foreground:          "#581c87",
			Card:                "rgba(255, 255, 255, 0.9)",
			CardForeground:      "#6b21a8",
			Primary:             "linear-gradient(135deg, #c4b5fd 0%, #a78bfa 50%, #8b5cf6 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(233, 213, 255, 0.5)",
			SecondaryForeground: "#7c3aed",
			Muted:               "rgba(243, 232, 255, 0.6)",
			MutedForeground:     "#8b5cf6",
			Accent:              "rgba(196, 181, 253, 0.3)",
			AccentForeground:    "#7c3aed",
			Border:              "rgba(233, 213, 255, 0.4)",
			Input:               "rgba(255, 255, 255, 0.8)",
			Ring:                "#a78bfa",
		},
	},
	{
		Name:        "Peach Blush",
		Value:       "sunset-orange",
		Preview:     "#fed7aa",
		Description: "Warm peach tones",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #fff7ed 0%, #ffedd5 50%, #fed7aa 100%)",
			Foreground:          "#7c2d12",
			Card:                "rgba(255, 255, 255, 0.9)",
			CardForeground:      "#9a3412",
			Primary:             "linear-gradient(135deg, #fdba74 0%, #fb923c 50%, #f97316 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(254, 215, 170, 0.5)",
			SecondaryForeground: "#c2410c",
			Muted:               "rgba(255, 237, 213, 0.6)",
			MutedForeground:     "#ea580c",
			Accent:              "rgba(253, 186, 116, 0.3)",
			AccentForeground:    "#c2410c",
			Border:              "rgba(254, 215, 170, 0.4)",
			Input:               "rgba(255, 255, 255, 0.8)",
			Ring:                "#fb923c",
		},
	},
	{
		Name:        "Rose Petal",
		Value:       "rose-gold",
		Preview:     "#fecdd3",
		Description: "Soft rose pink",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #fff1f2 0%, #ffe4e6 50%, #fecdd3 100%)",
			Foreground:          "#881337",
			Card:                "rgba(255, 255, 255, 0.9)",
			CardForeground:      "#9f1239",
			Primary:             "linear-gradient(135deg, #fda4af 0%, #fb7185 50%, #f43f5e 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(254, 205, 211, 0.5)",
			SecondaryForeground: "#be123c",
			Muted:               "rgba(255, 228, 230, 0.6)",
			MutedForeground:     "#e11d48",
			Accent:              "rgba(253, 164, 175, 0.3)",
			AccentForeground:    "#be123c",
			Border:              "rgba(254, 205, 211, 0.4)",
			Input:               "rgba(255, 255, 255, 0.8)",
			Ring:                "#fb7185",
		},
	},
	{
		Name:        "Warm Gray",
		Value:       "midnight-steel",
		Preview:     "#f3f4f6",
		Description: "Soft warm grays",
		Colors: Colors{
			Background:          "linear-gradient(135deg, #f9fafb 0%, #f3f4f6 50%, #e5e7eb 100%)",
			Foreground:          "#374151",
			Card:                "rgba(255, 255, 255, 0.95)",
			CardForeground:      "#4b5563",
			Primary:             "linear-gradient(135deg, #d1d5db 0%, #9ca3af 50%, #6b7280 100%)",
			PrimaryForeground:   "#ffffff",
			Secondary:           "rgba(229, 231, 235, 0.6)",
			SecondaryForeground: "#4b5563",
			Muted:               "rgba(243, 244, 246, 0.7)",
			MutedForeground:     "#6b7280",
			Accent:              "rgba(209, 213, 219, 0.4)",
			AccentForeground:    "#4b5563",
			Border:              "rgba(229, 231, 235, 0.5)",
			Input:               "rgba(255, 255, 255, 0.9)",
			Ring:                "#9ca3af",
		},
	},
}

// Find resolves a palette by its value. ok is false when the name is
// not in the catalog.
func Find(value string) (Palette, bool) {
	for _, p := range Catalog {
		if p.Value == value {
			return p, true
		}
	}
	return Palette{}, false
}
