package tally

import (
	"encoding/xml"
	"strings"

	"github.com/OnlyOnCloud/TallySyncService/internal/core"
)

// envelope is the export request understood by the Tally XML server.
type envelope struct {
	XMLName xml.Name `xml:"ENVELOPE"`
	Header  header   `xml:"HEADER"`
	Body    body     `xml:"BODY"`
}

type header struct {
	Version      int    `xml:"VERSION"`
	TallyRequest string `xml:"TALLYREQUEST"`
	Type         string `xml:"TYPE"`
	ID           string `xml:"ID"`
}

type body struct {
	Desc desc `xml:"DESC"`
}

type desc struct {
	Static staticVariables `xml:"STATICVARIABLES"`
	TDL    tdl             `xml:"TDL"`
}

type staticVariables struct {
	ExportFormat string     `xml:"SVEXPORTFORMAT"`
	Company      string     `xml:"SVCURRENTCOMPANY,omitempty"`
	FromDate     *dateValue `xml:"SVFROMDATE,omitempty"`
	ToDate       *dateValue `xml:"SVTODATE,omitempty"`
}

type dateValue struct {
	Type  string `xml:"TYPE,attr"`
	Value string `xml:",chardata"`
}

type tdl struct {
	Message tdlMessage `xml:"TDLMESSAGE"`
}

type tdlMessage struct {
	Collection collection `xml:"COLLECTION"`
}

type collection struct {
	Name     string `xml:"NAME,attr"`
	IsModify string `xml:"ISMODIFY,attr"`
	Type     string `xml:"TYPE"`
	Fetch    string `xml:"FETCH,omitempty"`
}

// collectionID names the ad-hoc collection defined in the request.
func collectionID(def core.TableDefinition) string {
	return "TallySync" + def.Info.Collection + "Collection"
}

// buildRequest renders the export envelope for one table.
func buildRequest(def core.TableDefinition, company string, window *core.DateRange) ([]byte, error) {
	id := collectionID(def)

	env := envelope{
		Header: header{
			Version:      1,
			TallyRequest: "Export",
			Type:         "Collection",
			ID:           id,
		},
		Body: body{Desc: desc{
			Static: staticVariables{
				ExportFormat: "$$SysName:XML",
				Company:      company,
			},
			TDL: tdl{Message: tdlMessage{Collection: collection{
				Name:     id,
				IsModify: "No",
				Type:     def.Info.Collection,
				Fetch:    strings.Join(def.Fetch, ", "),
			}}},
		}},
	}

	if window != nil {
		env.Body.Desc.Static.FromDate = &dateValue{Type: "Date", Value: core.FormatSourceDate(window.From)}
		env.Body.Desc.Static.ToDate = &dateValue{Type: "Date", Value: core.FormatSourceDate(window.To)}
	}

	out, err := xml.Marshal(env)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}
