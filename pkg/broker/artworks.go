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

// ArtworkSummary is one row of a catalogue search.
type ArtworkSummary struct {
	ID        int    `json:"artwork_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Category  string `json:"category,omitempty"`
	Room      string `json:"room,omitempty"`
	Technique string `json:"technique,omitempty"`
}

// ArtworkFilter narrows a catalogue search. All fields are optional
// and combine with AND.
type ArtworkFilter struct {
	Title          string
	ArtistName     string
	ArtistCategory string
	RoomName       string
	Technique      string
	GeneralQuery   string
	// IncludeSensoriale admits the tactile reproduction entries that
	// duplicate original works in the catalogue.
	IncludeSensoriale bool
}

// SearchArtworks lists artworks for a site with optional filters,
// ordered by title, capped at 50 rows. Multi-term title searches
// require all terms but fall back to any-term relevance so partial
// titles still match.
func (b *Broker) SearchArtworks(ctx context.Context, siteID int, filter ArtworkFilter) ([]ArtworkSummary, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, aw.artistworktitle, a.artistname,
       ac.artistcategorydescription, r.roomname, t.techniquedescription
FROM %s aw
LEFT JOIN %s a ON aw.artistid = a.artistid
LEFT JOIN %s ac ON a.artistcategoryid = ac.artistcategoryid
LEFT JOIN %s r ON aw.roomid = r.roomid
LEFT JOIN %s t ON aw.techniqueid = t.techniqueid
WHERE aw.siteid = `,
		b.table("artistwork"), b.table("artist"), b.table("artistcategory"),
		b.table("room"), b.table("technique")))
	q.write(q.bind(siteID))

	if !filter.IncludeSensoriale {
		q.write(" AND LOWER(aw.artistworktitle) NOT LIKE '%sensoriale%'")
	}

	if filter.Title != "" {
		b.writeTitleFilter(q, filter.Title)
	}
	if filter.ArtistName != "" {
		b.writeArtistNameFilter(q, "a.artistname", filter.ArtistName)
	}
	if filter.ArtistCategory != "" {
		writeCategoryFilter(q, "ac.artistcategorydescription", filter.ArtistCategory)
	}
	if filter.RoomName != "" {
		q.write(" AND ")
		q.like("r.roomname", filter.RoomName)
	}
	if filter.Technique != "" {
		writeTechniqueFilter(q, filter.Technique)
	}
	if filter.GeneralQuery != "" {
		writeGeneralFilter(q, filter.GeneralQuery)
	}

	q.write(fmt.Sprintf(" ORDER BY aw.artistworktitle LIMIT %d", searchLimit))

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("search_artworks", err)
	}
	defer rows.Close()

	var out []ArtworkSummary
	for rows.Next() {
		var (
			s                                 ArtworkSummary
			artist, category, room, technique sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &artist, &category, &room, &technique); err != nil {
			return nil, b.execErr("search_artworks", err)
		}
		s.Artist = nullStr(artist)
		s.Category = nullStr(category)
		s.Room = nullStr(room)
		s.Technique = nullStr(technique)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("search_artworks", err)
	}
	return out, nil
}

// writeTitleFilter requires every title term, with an any-term
// relevance fallback so near misses still return candidates.
func (b *Broker) writeTitleFilter(q *builder, title string) {
	terms := tokenize(title, titleStopWords, 1)
	if len(terms) == 0 {
		q.write(" AND ")
		q.like("aw.artistworktitle", title)
		return
	}

	strict := make([]string, 0, len(terms))
	relevance := make([]string, 0, len(terms))
	for _, term := range terms {
		strict = append(strict,
			"LOWER(aw.artistworktitle) LIKE "+q.bind(pattern(term)))
	}
	for _, term := range terms {
		relevance = append(relevance,
			"CASE WHEN LOWER(aw.artistworktitle) LIKE "+q.bind(pattern(term))+" THEN 1 ELSE 0 END")
	}
	q.write(" AND ((" + strings.Join(strict, " AND ") + ") OR (" +
		strings.Join(relevance, " + ") + ") > 0)")
}

func (b *Broker) writeArtistNameFilter(q *builder, col, name string) {
	terms := tokenize(name, artistStopWords, 2)
	if len(terms) == 0 {
		q.write(" AND ")
		q.like(col, name)
		return
	}
	conds := make([]string, 0, len(terms))
	for _, term := range terms {
		conds = append(conds, "LOWER("+col+") LIKE "+q.bind(pattern(term)))
	}
	q.write(" AND (" + strings.Join(conds, " OR ") + ")")
}

func writeCategoryFilter(q *builder, col, category string) {
	if canonical := canonicalCategory(category); canonical != "" {
		q.write(" AND (LOWER(" + col + ") LIKE " + q.bind(pattern(category)) +
			" OR " + col + " = '" + canonical + "')")
		return
	}
	q.write(" AND ")
	q.like(col, category)
}

func writeTechniqueFilter(q *builder, technique string) {
	if patterns := techniquePatterns(technique); patterns != nil {
		conds := make([]string, 0, len(patterns))
		for _, p := range patterns {
			conds = append(conds, "LOWER(t.techniquedescription) LIKE '"+p+"'")
		}
		q.write(" AND (" + strings.Join(conds, " OR ") + ")")
		return
	}
	q.write(" AND ")
	q.like("t.techniquedescription", technique)
}

func writeGeneralFilter(q *builder, general string) {
	for _, term := range tokenize(general, generalStopWords, 2) {
		lower := strings.ToLower(term)
		ph := q.bind(pattern(term))
		fields := []string{
			"LOWER(aw.artistworktitle) LIKE " + ph,
			"LOWER(aw.artistworkdescription) LIKE " + ph,
			"LOWER(a.artistname) LIKE " + ph,
			"LOWER(a.biography) LIKE " + ph,
			"LOWER(t.techniquedescription) LIKE " + ph,
		}
		switch {
		case contains(sculptureTerms, lower):
			fields = append(fields,
				"LOWER(ac.artistcategorydescription) LIKE "+ph,
				"ac.artistcategorydescription = 'SCULTORI'")
		case contains(paintingTerms, lower):
			fields = append(fields,
				"LOWER(ac.artistcategorydescription) LIKE "+ph,
				"ac.artistcategorydescription = 'PITTORI'")
		default:
			fields = append(fields,
				"LOWER(r.roomname) LIKE "+ph,
				"LOWER(ac.artistcategorydescription) LIKE "+ph)
		}
		q.write(" AND (" + strings.Join(fields, " OR ") + ")")
	}
}

func contains(set map[string]struct{}, term string) bool {
	_, ok := set[term]
	return ok
}

// SearchByInventory finds artworks by exact inventory number.
func (b *Broker) SearchByInventory(ctx context.Context, siteID int, inventoryNumber string) ([]ArtworkSummary, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, aw.artistworktitle, a.artistname, r.roomname
FROM %s aw
LEFT JOIN %s a ON aw.artistid = a.artistid
LEFT JOIN %s r ON aw.roomid = r.roomid
WHERE aw.siteid = `, b.table("artistwork"), b.table("artist"), b.table("room")))
	q.write(q.bind(siteID))
	q.write(" AND aw.inventorynumber = " + q.bind(inventoryNumber))
	q.write(" ORDER BY aw.artistworktitle")

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("search_by_inventory", err)
	}
	defer rows.Close()

	var out []ArtworkSummary
	for rows.Next() {
		var (
			s            ArtworkSummary
			artist, room sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &artist, &room); err != nil {
			return nil, b.execErr("search_by_inventory", err)
		}
		s.Artist = nullStr(artist)
		s.Room = nullStr(room)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("search_by_inventory", err)
	}
	return out, nil
}

// ArtworkDetail is the full description of one artwork, localized as
// far as the catalogue allows.
type ArtworkDetail struct {
	ID              int      `json:"artwork_id"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Artist          string   `json:"artist,omitempty"`
	Room            string   `json:"room,omitempty"`
	Technique       string   `json:"technique,omitempty"`
	RealizationYear string   `json:"realization_year,omitempty"`
	InventoryNumber string   `json:"inventory_number,omitempty"`
	ImageURL        string   `json:"image_url,omitempty"`
	NearbyArtworks  []string `json:"nearby_artworks,omitempty"`
	// Note flags degraded localization, e.g. a description available
	// only in the catalogue's default language.
	Note string `json:"note,omitempty"`
}

// GetArtworkDetails resolves an artwork description through three
// tiers: the audience-target description for (language, target), then
// the plain per-language description, then the Italian one with a
// note. A nil detail with nil error means the artwork has no
// description at all.
func (b *Broker) GetArtworkDetails(ctx context.Context, siteID, artworkID int, lang, target string) (*ArtworkDetail, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, aw.artistworktitle,
       atd.artistworktargetdescription, r.roomname, a.artistname,
       t.techniquedescription, aw.realizationyear, aw.inventorynumber,
       aw.imageref, aw.roomid
FROM %s aw
JOIN %s atd ON aw.artistworkid = atd.artistworkid
LEFT JOIN %s r ON aw.roomid = r.roomid
LEFT JOIN %s a ON aw.artistid = a.artistid
LEFT JOIN %s t ON aw.techniqueid = t.techniqueid
WHERE aw.artistworkid = `,
		b.table("artistwork"), b.table("artistworkaudiencetargetdesc"),
		b.table("room"), b.table("artist"), b.table("technique")))
	q.write(q.bind(artworkID))
	q.write(" AND atd.languageid = " + q.bind(lang))
	q.write(" AND atd.audiencetargetid = " + q.bind(target))

	var (
		d                                             ArtworkDetail
		description, room, artist, technique          sql.NullString
		year, inventory, image                        sql.NullString
		roomID                                        sql.NullInt64
	)
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(
		&d.ID, &d.Title, &description, &room, &artist, &technique,
		&year, &inventory, &image, &roomID)
	switch {
	case err == nil:
		d.Description = CleanText(nullStr(description))
		d.Room = nullStr(room)
		d.Artist = nullStr(artist)
		d.Technique = nullStr(technique)
		d.RealizationYear = nullStr(year)
		d.InventoryNumber = nullStr(inventory)
		d.ImageURL = nullStr(image)

		if title, err := b.localizedTitle(ctx, artworkID, lang); err == nil && title != "" {
			d.Title = title
		}
		if roomID.Valid {
			if nearby, err := b.ListArtworksInRoom(ctx, siteID, int(roomID.Int64)); err == nil {
				for _, n := range nearby {
					if n.ID != artworkID {
						d.NearbyArtworks = append(d.NearbyArtworks, n.Title)
					}
				}
			}
		}
		return &d, nil
	case !errors.Is(err, sql.ErrNoRows):
		return nil, b.execErr("get_artwork_details", err)
	}

	// Tier 2: plain per-language description.
	detail, err := b.artworkLangDetail(ctx, artworkID, lang)
	if err != nil {
		return nil, err
	}
	if detail != nil && detail.Description != "" {
		return detail, nil
	}

	// Tier 3: the catalogue's default language, flagged.
	if lang != "it" {
		detail, err = b.artworkLangDetail(ctx, artworkID, "it")
		if err != nil {
			return nil, err
		}
		if detail != nil {
			detail.Note = "Descrizione disponibile solo in italiano."
			return detail, nil
		}
	}
	return nil, nil
}

func (b *Broker) localizedTitle(ctx context.Context, artworkID int, lang string) (string, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf("SELECT artistworktitle FROM %s WHERE artistworkid = ", b.table("artistworklang")))
	q.write(q.bind(artworkID))
	q.write(" AND languageid = " + q.bind(lang))

	var title sql.NullString
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(&title)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return nullStr(title), nil
}

func (b *Broker) artworkLangDetail(ctx context.Context, artworkID int, lang string) (*ArtworkDetail, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, awl.artistworktitle, awl.artistworkdescription,
       r.roomname, a.artistname, t.techniquedescription,
       aw.realizationyear, aw.inventorynumber, aw.imageref
FROM %s aw
JOIN %s awl ON aw.artistworkid = awl.artistworkid
LEFT JOIN %s r ON aw.roomid = r.roomid
LEFT JOIN %s a ON aw.artistid = a.artistid
LEFT JOIN %s t ON aw.techniqueid = t.techniqueid
WHERE aw.artistworkid = `,
		b.table("artistwork"), b.table("artistworklang"),
		b.table("room"), b.table("artist"), b.table("technique")))
	q.write(q.bind(artworkID))
	q.write(" AND awl.languageid = " + q.bind(lang))

	var (
		d                                    ArtworkDetail
		description, room, artist, technique sql.NullString
		year, inventory, image               sql.NullString
	)
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(
		&d.ID, &d.Title, &description, &room, &artist, &technique,
		&year, &inventory, &image)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.execErr("get_artwork_details", err)
	}
	d.Description = CleanText(nullStr(description))
	d.Room = nullStr(room)
	d.Artist = nullStr(artist)
	d.Technique = nullStr(technique)
	d.RealizationYear = nullStr(year)
	d.InventoryNumber = nullStr(inventory)
	d.ImageURL = nullStr(image)
	return &d, nil
}

// ListArtworksInRoom lists up to 5 artworks sharing a room, for
// "what else is here" answers.
func (b *Broker) ListArtworksInRoom(ctx context.Context, siteID, roomID int) ([]ArtworkSummary, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, aw.artistworktitle, a.artistname
FROM %s aw
LEFT JOIN %s a ON aw.artistid = a.artistid
WHERE aw.siteid = `, b.table("artistwork"), b.table("artist")))
	q.write(q.bind(siteID))
	q.write(" AND aw.roomid = " + q.bind(roomID))
	q.write(fmt.Sprintf(" ORDER BY aw.artistworktitle LIMIT %d", roomLimit))

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("list_artworks_in_room", err)
	}
	defer rows.Close()

	var out []ArtworkSummary
	for rows.Next() {
		var (
			s      ArtworkSummary
			artist sql.NullString
		)
		if err := rows.Scan(&s.ID, &s.Title, &artist); err != nil {
			return nil, b.execErr("list_artworks_in_room", err)
		}
		s.Artist = nullStr(artist)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("list_artworks_in_room", err)
	}
	return out, nil
}

// ListCategories lists the artist categories present at a site.
func (b *Broker) ListCategories(ctx context.Context, siteID int) ([]string, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT DISTINCT ac.artistcategorydescription
FROM %s ac
JOIN %s a ON ac.artistcategoryid = a.artistcategoryid
WHERE a.siteid = `, b.table("artistcategory"), b.table("artist")))
	q.write(q.bind(siteID))
	q.write(" ORDER BY ac.artistcategorydescription")
	return b.stringColumn(ctx, "list_categories", q)
}

// ListTechniques lists the techniques used by a site's artworks.
func (b *Broker) ListTechniques(ctx context.Context, siteID int) ([]string, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT DISTINCT t.techniquedescription
FROM %s t
JOIN %s aw ON t.techniqueid = aw.techniqueid
WHERE aw.siteid = `, b.table("technique"), b.table("artistwork")))
	q.write(q.bind(siteID))
	q.write(" ORDER BY t.techniquedescription")
	return b.stringColumn(ctx, "list_techniques", q)
}

func (b *Broker) stringColumn(ctx context.Context, op string, q *builder) ([]string, error) {
	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr(op, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			return nil, b.execErr(op, err)
		}
		if v.Valid && v.String != "" {
			out = append(out, v.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr(op, err)
	}
	return out, nil
}
