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
)

// Location is one room or building of the museum.
type Location struct {
	ID   int    `json:"location_id"`
	Name string `json:"name"`
	Room string `json:"room,omitempty"`
}

// ListLocations lists a site's rooms and buildings.
func (b *Broker) ListLocations(ctx context.Context, siteID int) ([]Location, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT DISTINCT loc.locationid, loc.locationname, r.roomname
FROM %s loc
LEFT JOIN %s r ON loc.roomid = r.roomid
WHERE loc.siteid = `, b.table("location"), b.table("room")))
	q.write(q.bind(siteID))
	q.write(" ORDER BY loc.locationname")

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("list_locations", err)
	}
	defer rows.Close()

	var out []Location
	for rows.Next() {
		var (
			l    Location
			room sql.NullString
		)
		if err := rows.Scan(&l.ID, &l.Name, &room); err != nil {
			return nil, b.execErr("list_locations", err)
		}
		l.Room = nullStr(room)
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("list_locations", err)
	}
	return out, nil
}

// LocationDetail is a localized room/building description.
type LocationDetail struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// GetLocationDetails fetches a location's description in the given
// language. Nil with nil error when no localized description exists.
func (b *Broker) GetLocationDetails(ctx context.Context, locationID int, lang string) (*LocationDetail, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT ld.locationname, ld.locationdescription
FROM %s ld
WHERE ld.locationid = `, b.table("locationdescription")))
	q.write(q.bind(locationID))
	q.write(" AND ld.languageid = " + q.bind(lang))

	var name, description sql.NullString
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(&name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.execErr("get_location_details", err)
	}
	return &LocationDetail{
		Name:        nullStr(name),
		Description: CleanText(nullStr(description)),
	}, nil
}

// Pathway is one thematic visit route.
type Pathway struct {
	ID          int    `json:"pathway_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// ListPathways lists a site's thematic routes.
func (b *Broker) ListPathways(ctx context.Context, siteID int) ([]Pathway, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT pathwayid, pathwayname, pathwaydescription
FROM %s
WHERE siteid = `, b.table("pathway")))
	q.write(q.bind(siteID))
	q.write(" ORDER BY pathwayname")

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("list_pathways", err)
	}
	defer rows.Close()

	var out []Pathway
	for rows.Next() {
		var (
			p           Pathway
			description sql.NullString
		)
		if err := rows.Scan(&p.ID, &p.Name, &description); err != nil {
			return nil, b.execErr("list_pathways", err)
		}
		p.Description = CleanText(nullStr(description))
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("list_pathways", err)
	}
	return out, nil
}

// GetPathwayDetails fetches a route's localized description. Nil with
// nil error when none exists for the language.
func (b *Broker) GetPathwayDetails(ctx context.Context, pathwayID int, lang string) (*Pathway, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT pathwayname, pathwaydescription
FROM %s
WHERE pathwayid = `, b.table("pathwaydescription")))
	q.write(q.bind(pathwayID))
	q.write(" AND languageid = " + q.bind(lang))

	var name, description sql.NullString
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(&name, &description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.execErr("get_pathway_details", err)
	}
	return &Pathway{
		ID:          pathwayID,
		Name:        nullStr(name),
		Description: CleanText(nullStr(description)),
	}, nil
}

// PathwayStop is one artwork on a route, in visit order.
type PathwayStop struct {
	ArtworkID int    `json:"artwork_id"`
	Title     string `json:"title"`
	Artist    string `json:"artist,omitempty"`
	Sequence  int    `json:"sequence"`
}

// GetPathwayArtworks lists a route's artworks in visit order. The
// route is matched by partial name.
func (b *Broker) GetPathwayArtworks(ctx context.Context, siteID int, pathwayName string) ([]PathwayStop, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT aw.artistworkid, aw.artistworktitle, a.artistname, ps.sortingsequence
FROM %s p
JOIN %s ps ON p.pathwayid = ps.pathwayid
JOIN %s aw ON ps.artistworkid = aw.artistworkid
LEFT JOIN %s a ON aw.artistid = a.artistid
WHERE `, b.table("pathway"), b.table("pathwayspot"),
		b.table("artistwork"), b.table("artist")))
	q.like("p.pathwayname", pathwayName)
	q.write(" AND aw.siteid = " + q.bind(siteID))
	q.write(" ORDER BY ps.sortingsequence")

	rows, err := b.db.QueryContext(ctx, q.sql(), q.args...)
	if err != nil {
		return nil, b.execErr("get_pathway_artworks", err)
	}
	defer rows.Close()

	var out []PathwayStop
	for rows.Next() {
		var (
			s      PathwayStop
			artist sql.NullString
		)
		if err := rows.Scan(&s.ArtworkID, &s.Title, &artist, &s.Sequence); err != nil {
			return nil, b.execErr("get_pathway_artworks", err)
		}
		s.Artist = nullStr(artist)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, b.execErr("get_pathway_artworks", err)
	}
	return out, nil
}

// MuseumInfo is the site's institutional record.
type MuseumInfo struct {
	Name         string `json:"name"`
	Description  string `json:"description,omitempty"`
	History      string `json:"history,omitempty"`
	Architecture string `json:"architecture,omitempty"`
	Address      string `json:"address,omitempty"`
	City         string `json:"city,omitempty"`
	Country      string `json:"country,omitempty"`
	Telephone    string `json:"telephone,omitempty"`
	Email        string `json:"email,omitempty"`
}

// GetMuseumInfo fetches the site's institutional information. Nil with
// nil error when the site does not exist.
func (b *Broker) GetMuseumInfo(ctx context.Context, siteID int) (*MuseumInfo, error) {
	q := b.newBuilder()
	q.write(fmt.Sprintf(`SELECT sitename, sitedescription, history, architecture,
       address, city, country, telephone, email
FROM %s
WHERE siteid = `, b.table("site")))
	q.write(q.bind(siteID))

	var (
		m                                  MuseumInfo
		description, history, architecture sql.NullString
		address, city, country             sql.NullString
		telephone, email                   sql.NullString
	)
	err := b.db.QueryRowContext(ctx, q.sql(), q.args...).Scan(
		&m.Name, &description, &history, &architecture,
		&address, &city, &country, &telephone, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, b.execErr("get_museum_info", err)
	}
	m.Description = CleanText(nullStr(description))
	m.History = CleanText(nullStr(history))
	m.Architecture = CleanText(nullStr(architecture))
	m.Address = nullStr(address)
	m.City = nullStr(city)
	m.Country = nullStr(country)
	m.Telephone = nullStr(telephone)
	m.Email = nullStr(email)
	return &m, nil
}
