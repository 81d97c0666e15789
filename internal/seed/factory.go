// Package seed fills a database with demo accounts, posts and engagement. Everything
// after account creation goes through the services, so seeded counters are exactly
// what real traffic would have produced.
package seed

import (
	"fmt"
	"strings"

	"inkwell/internal/models"
	"inkwell/internal/service"

	"github.com/brianvoe/gofakeit/v6"
)

var topics = []string{
	"go", "databases", "distributed-systems", "frontend", "devops", "testing",
	"security", "career", "open-source", "performance", "design", "writing",
}

// Factory builds fake domain values. It never touches the database.
type Factory struct {
	faker *gofakeit.Faker
}

// NewFactory returns a Factory. A zero seed picks a random one.
func NewFactory(seed int64) *Factory {
	return &Factory{faker: gofakeit.New(seed)}
}

// Account builds an unsaved account whose username and email embed n to stay unique.
func (f *Factory) Account(n int) *models.Account {
	first, last := f.faker.FirstName(), f.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s.%s%d", first, last, n))
	return &models.Account{
		Username:   username,
		Fullname:   first + " " + last,
		Email:      username + "@example.com",
		ProfileImg: fmt.Sprintf("https://i.pravatar.cc/150?u=%s", username),
		Bio:        truncate(f.faker.Sentence(12), 200),
	}
}

// Post builds publish input for authorID. Drafts carry only a title and partial body.
func (f *Factory) Post(authorID uint, draft bool) service.PublishPostInput {
	in := service.PublishPostInput{
		AuthorID: authorID,
		Title:    strings.TrimSuffix(f.faker.Sentence(f.faker.Number(3, 8)), "."),
		Draft:    draft,
	}
	if draft {
		if f.faker.Bool() {
			in.Content = f.faker.Paragraph(1, 2, 8, "\n\n")
		}
		return in
	}

	in.Description = truncate(f.faker.Sentence(f.faker.Number(8, 20)), 200)
	in.Content = f.faker.Paragraph(f.faker.Number(2, 6), f.faker.Number(3, 6), 12, "\n\n")
	in.BannerURL = fmt.Sprintf("https://picsum.photos/seed/%s/1200/600", f.faker.UUID())

	n := f.faker.Number(1, 4)
	seen := make(map[string]bool, n)
	for len(in.Tags) < n {
		tag := topics[f.faker.Number(0, len(topics)-1)]
		if !seen[tag] {
			seen[tag] = true
			in.Tags = append(in.Tags, tag)
		}
	}
	return in
}

// Comment returns comment text.
func (f *Factory) Comment() string {
	if f.faker.Number(0, 3) == 0 {
		return f.faker.Question()
	}
	return f.faker.Sentence(f.faker.Number(4, 24))
}

// Chance reports true with probability p.
func (f *Factory) Chance(p float64) bool {
	return f.faker.Float64Range(0, 1) < p
}

// Pick returns a uniformly chosen index below n.
func (f *Factory) Pick(n int) int {
	return f.faker.Number(0, n-1)
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
