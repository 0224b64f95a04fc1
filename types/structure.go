package types

// Static report taxonomy. Sections and subsections are fixed configuration,
// the backend fills them with content through the conversation flow.

type Subsection struct {
	Key   string `json:"key"`
	Title string `json:"title"`
}

type Section struct {
	Key         string       `json:"key"`
	Title       string       `json:"title"`
	Subsections []Subsection `json:"subsections"`
}

type DocumentStructure struct {
	Topic    Topic     `json:"topic"`
	Sections []Section `json:"sections"`
}

var Structures = map[Topic]DocumentStructure{
	TopicBaugrundgutachten: {
		Topic: TopicBaugrundgutachten,
		Sections: []Section{
			{
				Key:   "projekt",
				Title: "Projektinformationen",
				Subsections: []Subsection{
					{Key: "anlass", Title: "Anlass und Aufgabenstellung"},
					{Key: "standort", Title: "Standort und Bauvorhaben"},
					{Key: "unterlagen", Title: "Verwendete Unterlagen"},
				},
			},
			{
				Key:   "untersuchungen",
				Title: "Durchgeführte Untersuchungen",
				Subsections: []Subsection{
					{Key: "feld", Title: "Felduntersuchungen"},
					{Key: "labor", Title: "Laboruntersuchungen"},
				},
			},
			{
				Key:   "baugrund",
				Title: "Baugrundverhältnisse",
				Subsections: []Subsection{
					{Key: "schichten", Title: "Schichtenaufbau"},
					{Key: "grundwasser", Title: "Grundwasserverhältnisse"},
					{Key: "kennwerte", Title: "Bodenmechanische Kennwerte"},
				},
			},
			{
				Key:   "bewertung",
				Title: "Geotechnische Bewertung",
				Subsections: []Subsection{
					{Key: "gruendung", Title: "Gründungsempfehlung"},
					{Key: "erdarbeiten", Title: "Hinweise zu Erdarbeiten"},
					{Key: "wasserhaltung", Title: "Wasserhaltung"},
				},
			},
		},
	},
	TopicDeklarationsanalyse: {
		Topic: TopicDeklarationsanalyse,
		Sections: []Section{
			{
				Key:   "projekt",
				Title: "Projektinformationen",
				Subsections: []Subsection{
					{Key: "anlass", Title: "Anlass und Aufgabenstellung"},
					{Key: "standort", Title: "Standort und Probenahme"},
				},
			},
			{
				Key:   "analytik",
				Title: "Analytik",
				Subsections: []Subsection{
					{Key: "parameter", Title: "Untersuchte Parameter"},
					{Key: "ergebnisse", Title: "Analyseergebnisse"},
				},
			},
			{
				Key:   "einstufung",
				Title: "Abfallrechtliche Einstufung",
				Subsections: []Subsection{
					{Key: "zuordnung", Title: "Zuordnung nach LAGA"},
					{Key: "entsorgung", Title: "Entsorgungsempfehlung"},
				},
			},
		},
	},
	TopicVersickerungsuntersuchung: {
		Topic: TopicVersickerungsuntersuchung,
		Sections: []Section{
			{
				Key:   "projekt",
				Title: "Projektinformationen",
				Subsections: []Subsection{
					{Key: "anlass", Title: "Anlass und Aufgabenstellung"},
					{Key: "standort", Title: "Standort und Bauvorhaben"},
				},
			},
			{
				Key:   "versickerung",
				Title: "Versickerungsverhältnisse",
				Subsections: []Subsection{
					{Key: "durchlaessigkeit", Title: "Durchlässigkeitsbeiwerte"},
					{Key: "bemessung", Title: "Bemessung der Versickerungsanlage"},
				},
			},
		},
	},
}

// FindSubsection reports whether the given section/subsection pair exists in
// the topic's taxonomy.
func FindSubsection(topic Topic, sectionKey, subsectionKey string) bool {
	structure, ok := Structures[topic]
	if !ok {
		return false
	}
	for _, section := range structure.Sections {
		if section.Key != sectionKey {
			continue
		}
		for _, sub := range section.Subsections {
			if sub.Key == subsectionKey {
				return true
			}
		}
	}
	return false
}
