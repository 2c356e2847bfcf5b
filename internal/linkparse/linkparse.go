// Package linkparse extracts link references from rich-text field content.
//
// Content is user-authored HTML and is never rejected: the tokenizer recovers from
// malformed markup and whatever markers could be read are returned.
package linkparse

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/emrgen/notebook/internal/model"
	"golang.org/x/net/html"
)

// Reference is a link from field content to a media item or another record.
type Reference struct {
	Kind     model.LinkKind
	TargetID string
}

func (r Reference) String() string {
	return fmt.Sprintf("%s:%s", r.Kind, r.TargetID)
}

// Set is a deduplicated collection of references.
type Set = mapset.Set[Reference]

func NewSet(refs ...Reference) Set {
	return mapset.NewThreadUnsafeSet(refs...)
}

func Media(id string) Reference {
	return Reference{Kind: model.LinkKindMedia, TargetID: id}
}

func Record(id string) Reference {
	return Reference{Kind: model.LinkKindRecord, TargetID: id}
}

const (
	attrMediaID  = "data-media-id"
	attrRecordID = "data-record-id"
	attrGlobalID = "data-globalid"
)

var (
	mediaPath  = regexp.MustCompile(`(?:^|/)media/([A-Za-z0-9_-]+)(?:[/?#]|$)`)
	recordPath = regexp.MustCompile(`(?:^|/)records/([A-Za-z0-9_-]+)(?:[/?#]|$)`)
	globalID   = regexp.MustCompile(`^([A-Z]{2})([A-Za-z0-9_-]+)$`)
	validID    = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

// global id prefixes
var globalKinds = map[string]model.LinkKind{
	"GL": model.LinkKindMedia,
	"MD": model.LinkKindMedia,
	"SD": model.LinkKindRecord,
	"NB": model.LinkKindRecord,
}

// Extract returns the set of references found in content.
func Extract(content string) Set {
	refs := NewSet()
	if strings.TrimSpace(content) == "" {
		return refs
	}

	z := html.NewTokenizer(strings.NewReader(content))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			// io.EOF or a tokenizer error, either way keep what was found
			return refs
		case html.StartTagToken, html.SelfClosingTagToken:
			_, hasAttr := z.TagName()
			if !hasAttr {
				continue
			}
			for _, ref := range tagReferences(z) {
				refs.Add(ref)
			}
		}
	}
}

// ExtractAll merges the references of several contents.
func ExtractAll(contents ...string) Set {
	refs := NewSet()
	for _, content := range contents {
		refs = refs.Union(Extract(content))
	}

	return refs
}

// Sorted returns the references ordered by kind and target.
func Sorted(refs Set) []Reference {
	out := refs.ToSlice()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].TargetID < out[j].TargetID
	})

	return out
}

func tagReferences(z *html.Tokenizer) []Reference {
	var refs []Reference
	for {
		key, val, more := z.TagAttr()
		if ref, ok := attrReference(string(key), strings.TrimSpace(string(val))); ok {
			refs = append(refs, ref)
		}
		if !more {
			break
		}
	}

	return refs
}

func attrReference(key, val string) (Reference, bool) {
	if val == "" {
		return Reference{}, false
	}

	switch key {
	case attrMediaID:
		if validID.MatchString(val) {
			return Media(val), true
		}
	case attrRecordID:
		if validID.MatchString(val) {
			return Record(val), true
		}
	case attrGlobalID:
		m := globalID.FindStringSubmatch(val)
		if m == nil {
			return Reference{}, false
		}
		if kind, ok := globalKinds[m[1]]; ok {
			return Reference{Kind: kind, TargetID: m[2]}, true
		}
	case "href", "src":
		if m := mediaPath.FindStringSubmatch(val); m != nil {
			return Media(m[1]), true
		}
		if m := recordPath.FindStringSubmatch(val); m != nil {
			return Record(m[1]), true
		}
	}

	return Reference{}, false
}
