// Package catalog implements the Catalog Parser: turning a novel landing
// page into a Catalog record (Novel -> Volumes -> Chapters), plus its
// stable JSON Serialize/Deserialize round trip (spec §3, §4.D).
package catalog

import "encoding/json"

// Chapter is the catalog (not-yet-materialized) form of a chapter: a
// display name and its source URL.
type Chapter struct {
	Name string
	URL  string
}

// Volume is an ordered sequence of Chapters under a display name, cover,
// and source URL. Invariant: Name is non-empty ("Unknown Volume" is the
// parser's fallback).
type Volume struct {
	Name     string
	URL      string
	CoverImg string
	Chapters []Chapter
}

// Novel is the parsed form of a novel landing page. Invariant: Title is
// non-empty ("Unknown" is the parser's fallback); Volumes preserve
// source-page order; Tags preserve first-seen order with duplicates
// removed.
type Novel struct {
	Title     string
	URL       string
	Author    string
	Summary   string
	MainCover string
	Tags      []string
	Volumes   []Volume
}

// jsonChapter/jsonVolume/jsonNovel mirror the stable wire schema spec §4.D
// names: {name, url, author, summary, mainCover, tags[],
// volumes[{url, name, coverImg, chapters[{name, url}]}]}.
type jsonChapter struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type jsonVolume struct {
	URL      string        `json:"url"`
	Name     string        `json:"name"`
	CoverImg string        `json:"coverImg"`
	Chapters []jsonChapter `json:"chapters"`
}

type jsonNovel struct {
	Name      string       `json:"name"`
	URL       string       `json:"url"`
	Author    string       `json:"author"`
	Summary   string       `json:"summary"`
	MainCover string       `json:"mainCover"`
	Tags      []string     `json:"tags"`
	Volumes   []jsonVolume `json:"volumes"`
}

func toJSONNovel(n *Novel) jsonNovel {
	jn := jsonNovel{
		Name:      n.Title,
		URL:       n.URL,
		Author:    n.Author,
		Summary:   n.Summary,
		MainCover: n.MainCover,
		Tags:      append([]string{}, n.Tags...),
	}
	for _, v := range n.Volumes {
		jv := jsonVolume{URL: v.URL, Name: v.Name, CoverImg: v.CoverImg}
		for _, c := range v.Chapters {
			jv.Chapters = append(jv.Chapters, jsonChapter{Name: c.Name, URL: c.URL})
		}
		jn.Volumes = append(jn.Volumes, jv)
	}
	return jn
}

func fromJSONNovel(jn jsonNovel) *Novel {
	n := &Novel{
		Title:     jn.Name,
		URL:       jn.URL,
		Author:    jn.Author,
		Summary:   jn.Summary,
		MainCover: jn.MainCover,
		Tags:      append([]string{}, jn.Tags...),
	}
	for _, jv := range jn.Volumes {
		v := Volume{Name: jv.Name, URL: jv.URL, CoverImg: jv.CoverImg}
		for _, jc := range jv.Chapters {
			v.Chapters = append(v.Chapters, Chapter{Name: jc.Name, URL: jc.URL})
		}
		n.Volumes = append(n.Volumes, v)
	}
	return n
}

// Serialize renders n as pretty JSON with the stable field set spec §4.D
// names.
func Serialize(n *Novel) ([]byte, error) {
	return json.MarshalIndent(toJSONNovel(n), "", "  ")
}

// Deserialize parses JSON produced by Serialize (or hand-written JSON of
// the same shape) back into a Novel. Required string/array shapes are
// enforced by unmarshaling into typed fields; missing optional fields
// default to their zero value (empty string / nil slice, treated as
// empty).
func Deserialize(data []byte) (*Novel, error) {
	var jn jsonNovel
	if err := json.Unmarshal(data, &jn); err != nil {
		return nil, err
	}
	return fromJSONNovel(jn), nil
}
