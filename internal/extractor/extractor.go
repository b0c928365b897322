package extractor

import (
	"github.com/PuerkitoBio/goquery"
	"github.com/ramkansal/taglift/pkg/plugin"
	"go.uber.org/zap"
)

// Fields holds everything the main profile layout yields.
type Fields struct {
	Name        string
	Bio         string
	Location    string
	Connections string
	Followers   string
}

// ApplyTo copies the extracted fields onto rec.
func (f Fields) ApplyTo(rec *plugin.ProfileRecord) {
	rec.Name = f.Name
	rec.Bio = f.Bio
	rec.Location = f.Location
	rec.Connections = f.Connections
	rec.Followers = f.Followers
}

// Set holds the field rules run against each page snapshot.
type Set struct {
	Name     Rule
	Bio      Rule
	Location Rule

	logger *zap.Logger
}

// NewSet creates a set with all built-in field rules.
func NewSet(logger *zap.Logger) *Set {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Set{
		Name:     NameRule(),
		Bio:      BioRule(),
		Location: LocationRule(),
		logger:   logger,
	}
}

// ExtractAll runs every field extractor against doc. A field that cannot be
// found is left empty; other fields still run.
func (s *Set) ExtractAll(doc *goquery.Document) Fields {
	counts := ExtractCounts(doc)
	f := Fields{
		Name:        s.Name.Apply(doc),
		Bio:         s.Bio.Apply(doc),
		Location:    s.Location.Apply(doc),
		Connections: counts.Connections,
		Followers:   counts.Followers,
	}

	s.logger.Debug("Fields extracted",
		zap.Bool("name", f.Name != ""),
		zap.Bool("bio", f.Bio != ""),
		zap.Bool("location", f.Location != ""),
		zap.String("connections", f.Connections),
		zap.String("followers", f.Followers))

	return f
}
