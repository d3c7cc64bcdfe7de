// Copyright 2026 Noesis Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//	http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package broker

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ArtistSummary is one row of an artist listing.
type ArtistSummary struct {
	ID       int    `json:"artist_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
}

// ListArtists lists a site's artists, optionally filtered by name
// terms (any-term match) and category, ordered by name. Category
// labels are localized for display.
func (b *Broker) ListArtists(ctx context.Context, siteID int, name, category, lang string) ([]ArtistSummary, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT a.artistid, a.artistname, ac.artistcategorydescription
FROM %s a
LEFT JOIN %s ac ON a.artistcategoryid = ac.artistcategoryid
WHERE a.siteid = `, b.table("artist"), b.table("artistcategory")))
	q.write(q.bind(siteID))

	if name != "" {
		terms := tokenize(name, wordSet("il", "lo", "la", "di", "de", "da"), 0)
		if len(terms) == 0 {
			q.write(" AND ")
			q.like("a.artistname", name)
		} else {
			conds := make([]string, 0, len(terms))
			for _, term := range terms {
				conds = append(conds, "LOWER(a.artistname) LIKE "+q.bind(pattern(term)))
			}
			q.write(" AND (" + strings.Join(conds, " OR ") + ")")
		}
	}
	if category != "" {
		writeCategoryFilter(q, "ac.artistcategorydescription", category)
	}
	q.write(" ORDER BY a.artistname")

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("list_artists", err)
	}
	defer rows.Close()

	var out []ArtistSummary
	for rows.Next() {
		var (
			s        ArtistSummary
			category sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Name, &category); err != nil {
			return nil, b.execErr("list_artists", err)
		}
		s.Category = LocalizeCategory(nullStr(category), lang)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("list_artists", err)
	}
	return out, nil
}

// ArtistDetail is an artist's full record. Biography comes from the
// base artist row; Description prefers the localized editorial text
// and falls back to Italian, then to the biography itself.
type ArtistDetail struct {
	ID          int    `json:"artist_id"`
	Name        string `json:"name"`
	BirthPlace  string `json:"birth_place,omitempty"`
	DeathPlace  string `json:"death_place,omitempty"`
	BirthDate   string `json:"birth_date,omitempty"`
	DeathDate   string `json:"death_date,omitempty"`
	Category    string `json:"category,omitempty"`
	Biography   string `json:"biography"`
	Description string `json:"description"`
	BirthDeath  string `json:"birth_death_description,omitempty"`
	Note        string `json:"note,omitempty"`
}

// GetArtistDetails fetches one artist. A nil detail with nil error
// means the artist does not exist.
func (b *Broker) GetArtistDetails(ctx context.Context, artistID int, lang string) (*ArtistDetail, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT a.artistid, a.artistname, a.birthplace, a.deathplace,
       a.birthdate, a.deathdate, a.biography, ac.artistcategorydescription
FROM %s a
LEFT JOIN %s ac ON a.artistcategoryid = ac.artistcategoryid
WHERE a.artistid = `, b.table("artist"), b.table("artistcategory")))
	q.write(q.bind(artistID))

	var (
		d                                       ArtistDetail
		birthPlace, deathPlace, bio, category   sql.NullString
		birthDate, deathDate                    sql.NullTime
	)
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(
		&d.ID, &d.Name, &birthPlace, &deathPlace,
		&birthDate, &deathDate, &bio, &category)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.execErr("get_artist_details", err)
	}
	d.BirthPlace = nullStr(birthPlace)
	d.DeathPlace = nullStr(deathPlace)
	d.BirthDate = nullDate(birthDate)
	d.DeathDate = nullDate(deathDate)
	d.Category = LocalizeCategory(nullStr(category), lang)
	d.Biography = CleanText(nullStr(bio))

	desc, birthDeath, err := b.artistDescription(ctx, artistID, lang)
	if err != nil {
		return nil, err
	}
	switch {
	case len(desc) > 10:
		d.Description = CleanText(desc)
		d.BirthDeath = birthDeath
	case lang != "it":
		descIT, birthDeathIT, err := b.artistDescription(ctx, artistID, "it")
		if err != nil {
			return nil, err
		}
		if descIT != "" {
			d.Description = CleanText(descIT)
			d.BirthDeath = birthDeathIT
			d.Note = "Biografia disponibile solo in italiano."
		} else {
			d.Description = d.Biography
		}
	default:
		d.Description = d.Biography
	}
	return &d, nil
}

func (b *Broker) artistDescription(ctx context.Context, artistID int, lang string) (string, string, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT artistdescription, birthdeathdescription
FROM %s
WHERE artistid = `, b.table("artistdescription")))
	q.write(q.bind(artistID))
	q.write(" AND languageid = " + q.bind(lang))
	q.write(" LIMIT 1")

	var desc, birthDeath sql.NullString
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(&desc, &birthDeath)
	if errors.Is(err, sql.ErrNoRows) {
		return "", "", nil
	}
	if err != nil {
		return "", "", b.execErr("get_artist_details", err)
	}
	return nullStr(desc), nullStr(birthDeath), nil
}
