package indexer

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/dustin/go-humanize"
)

type fieldRole int

const (
	roleIgnored fieldRole = iota
	roleDownload
	roleMagnet
	roleInfohash
	roleDetails
	roleComments
	roleTitle
	roleDescription
	roleCategory
	roleCategoryDesc
	roleSize
	roleSeeders
	roleLeechers
	roleDate
	roleFiles
	roleGrabs
	roleDownloadVolumeFactor
	roleUploadVolumeFactor
	roleMinimumRatio
	roleMinimumSeedTime
	roleIMDB
)

var fieldRoles = map[string]fieldRole{
	"download":             roleDownload,
	"magnet":               roleMagnet,
	"infohash":             roleInfohash,
	"details":              roleDetails,
	"comments":             roleComments,
	"title":                roleTitle,
	"description":          roleDescription,
	"category":             roleCategory,
	"categorydesc":         roleCategoryDesc,
	"size":                 roleSize,
	"seeders":              roleSeeders,
	"leechers":             roleLeechers,
	"date":                 roleDate,
	"files":                roleFiles,
	"grabs":                roleGrabs,
	"downloadvolumefactor": roleDownloadVolumeFactor,
	"uploadvolumefactor":   roleUploadVolumeFactor,
	"minimumratio":         roleMinimumRatio,
	"minimumseedtime":      roleMinimumSeedTime,
	"imdb":                 roleIMDB,
}

// roleOf returns the role of a field name, helper fields (`_name`) and unknown names are
// ignored.
func roleOf(name string) fieldRole {
	return fieldRoles[strings.ToLower(name)]
}

// linkRoles are the roles that can give a release a link.
var linkRoles = []fieldRole{roleDownload, roleMagnet, roleInfohash, roleDetails, roleComments}

type rowState struct {
	i       *Indexer
	release Release
}

func newRowState(i *Indexer) *rowState {
	return &rowState{
		i: i,
		release: Release{
			DownloadVolumeFactor: 1,
			UploadVolumeFactor:   1,
		},
	}
}

var roleAssign = map[fieldRole]func(s *rowState, value string) error{
	roleDownload: func(s *rowState, value string) error {
		if strings.HasPrefix(strings.ToLower(value), "magnet:") {
			return assignMagnet(s, value)
		}
		s.release.Link = s.i.resolve(value)
		return nil
	},
	roleMagnet: assignMagnet,
	roleInfohash: func(s *rowState, value string) error {
		s.release.InfoHash = strings.ToLower(value)
		return nil
	},
	roleDetails: func(s *rowState, value string) error {
		s.release.Details = s.i.resolve(value)
		return nil
	},
	roleComments: func(s *rowState, value string) error {
		s.release.Comments = s.i.resolve(value)
		return nil
	},
	roleTitle: func(s *rowState, value string) error {
		s.release.Title = value
		return nil
	},
	roleDescription: func(s *rowState, value string) error {
		s.release.Description = value
		return nil
	},
	roleCategory: func(s *rowState, value string) error {
		s.addCategories(s.i.mapper.MapTrackerCat(value))
		return nil
	},
	roleCategoryDesc: func(s *rowState, value string) error {
		s.addCategories(s.i.mapper.MapTrackerCatDesc(value))
		return nil
	},
	roleSize: func(s *rowState, value string) (err error) {
		s.release.Size, err = parseSize(value)
		return err
	},
	roleSeeders: func(s *rowState, value string) (err error) {
		s.release.Seeders, err = parseInt(value)
		return err
	},
	roleLeechers: func(s *rowState, value string) error {
		n, err := parseInt(value)
		s.release.Leechers += n
		return err
	},
	roleDate: func(s *rowState, value string) (err error) {
		s.release.PublishDate, err = parseDate(value, s.i.clock.Location())
		return err
	},
	roleFiles: func(s *rowState, value string) (err error) {
		s.release.Files, err = parseInt(value)
		return err
	},
	roleGrabs: func(s *rowState, value string) (err error) {
		s.release.Grabs, err = parseInt(value)
		return err
	},
	roleDownloadVolumeFactor: func(s *rowState, value string) (err error) {
		s.release.DownloadVolumeFactor, err = parseFloat(value)
		return err
	},
	roleUploadVolumeFactor: func(s *rowState, value string) (err error) {
		s.release.UploadVolumeFactor, err = parseFloat(value)
		return err
	},
	roleMinimumRatio: func(s *rowState, value string) (err error) {
		s.release.MinimumRatio, err = parseFloat(value)
		return err
	},
	roleMinimumSeedTime: func(s *rowState, value string) error {
		n, err := parseInt(value)
		s.release.MinimumSeedTime = int64(n)
		return err
	},
	roleIMDB: func(s *rowState, value string) error {
		s.release.IMDBID = parseIMDB(value)
		return nil
	},
}

var infoHashRegex = regexp.MustCompile(`(?i)xt=urn:btih:([a-z0-9]+)`)

func assignMagnet(s *rowState, value string) error {
	s.release.MagnetURI = value
	match := infoHashRegex.FindStringSubmatch(value)
	if match != nil && s.release.InfoHash == "" {
		s.release.InfoHash = strings.ToLower(match[1])
	}
	return nil
}

func (s *rowState) addCategories(codes []int) {
	for _, code := range codes {
		found := false
		for _, existing := range s.release.Categories {
			if existing == code {
				found = true
				break
			}
		}
		if !found {
			s.release.Categories = append(s.release.Categories, code)
		}
	}
}

// assign routes the value of a field into the release, empty values are left unset.
func (s *rowState) assign(name, value string) error {
	if value == "" {
		return nil
	}
	fn, ok := roleAssign[roleOf(name)]
	if !ok {
		return nil
	}
	return fn(s, value)
}

func (s *rowState) hasLinkField() bool {
	for _, field := range s.i.def.Search.Fields {
		role := roleOf(field.Name)
		for _, linkRole := range linkRoles {
			if role == linkRole {
				return true
			}
		}
	}
	return false
}

// finish checks the release and fills in the derived fields.
func (s *rowState) finish(pageURL string) (Release, error) {
	r := s.release
	if r.Title == "" {
		return Release{}, errNoTitle
	}
	if r.MagnetURI == "" && r.InfoHash != "" {
		r.MagnetURI = "magnet:?xt=urn:btih:" + r.InfoHash + "&dn=" + url.QueryEscape(r.Title)
	}
	if r.Link == "" && r.MagnetURI == "" && r.Details == "" && r.Comments == "" {
		if s.hasLinkField() {
			return Release{}, errNoLink
		}
		r.Details = pageURL
		s.i.tel.ReportDebug(report_details_fallback, r.Title, pageURL)
	}

	switch {
	case r.Details != "":
		r.Guid = r.Details
	case r.Comments != "":
		r.Guid = r.Comments
	case r.Link != "":
		r.Guid = r.Link
	default:
		r.Guid = r.MagnetURI
	}
	if r.Details == "" {
		r.Details = r.Comments
	}
	r.Peers = r.Seeders + r.Leechers
	return r, nil
}

var numberCleaner = strings.NewReplacer(",", "", " ", "", "\u00a0", "")

func parseInt(value string) (int, error) {
	cleaned := numberCleaner.Replace(value)
	n, err := strconv.Atoi(cleaned)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(cleaned, 64)
	if ferr == nil {
		return int(f), nil
	}
	return 0, fmt.Errorf("not a number: %q", value)
}

func parseFloat(value string) (float64, error) {
	cleaned := strings.TrimSpace(value)
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.Replace(cleaned, ",", ".", 1)
	}
	cleaned = numberCleaner.Replace(cleaned)
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, fmt.Errorf("not a number: %q", value)
	}
	return f, nil
}

var sizeRegex = regexp.MustCompile(`(?i)([\d.,]+)\s*([kmgtp]i?b|b|bytes?)?\b`)

// binaryUnits reads tracker units as powers of 1024, which is what trackers mean by them.
var binaryUnits = map[string]string{
	"kb": "KiB",
	"mb": "MiB",
	"gb": "GiB",
	"tb": "TiB",
	"pb": "PiB",
}

func parseSize(value string) (uint64, error) {
	match := sizeRegex.FindStringSubmatch(value)
	if match == nil {
		return 0, fmt.Errorf("not a size: %q", value)
	}

	number := match[1]
	switch {
	case strings.Contains(number, ",") && strings.Contains(number, "."):
		number = strings.ReplaceAll(number, ",", "")
	case strings.Count(number, ",") == 1:
		number = strings.Replace(number, ",", ".", 1)
	default:
		number = strings.ReplaceAll(number, ",", "")
	}

	unit := strings.ToLower(match[2])
	if binary, ok := binaryUnits[unit]; ok {
		unit = binary
	}
	if unit == "" || strings.HasPrefix(unit, "byte") {
		unit = "B"
	}

	size, err := humanize.ParseBytes(number + " " + unit)
	if err != nil {
		return 0, fmt.Errorf("not a size: %q: %w", value, err)
	}
	return size, nil
}

// parseDate accepts the RFC 3339 output of the date filters, unix timestamps and any
// format dateparse recognizes.
func parseDate(value string, location *time.Location) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, value)
	if err == nil {
		return t, nil
	}
	if unix, err := strconv.ParseInt(value, 10, 64); err == nil && unix > 100000000 {
		return time.Unix(unix, 0).In(location), nil
	}
	t, err = dateparse.ParseIn(value, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("not a date: %q: %w", value, err)
	}
	return t, nil
}

var imdbRegex = regexp.MustCompile(`(?i)(?:tt)?(\d{6,})`)

func parseIMDB(value string) string {
	match := imdbRegex.FindStringSubmatch(value)
	if match == nil {
		return ""
	}
	n, err := strconv.Atoi(match[1])
	if err != nil {
		return ""
	}
	return fmt.Sprintf("tt%07d", n)
}
