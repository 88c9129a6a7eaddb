package webdavclient

import "encoding/xml"

// multistatus is the body of a WebDAV PROPFIND 207 response, trimmed
// to the properties this client actually reads.
type multistatus struct {
	Responses []davResponse `xml:"response"`
}

type davResponse struct {
	Href      string        `xml:"href"`
	Propstats []davPropstat `xml:"propstat"`
}

type davPropstat struct {
	Status string  `xml:"status"`
	Prop   davProp `xml:"prop"`
}

type davProp struct {
	ETag          string          `xml:"getetag"`
	LastModified  string          `xml:"getlastmodified"`
	ContentLength string          `xml:"getcontentlength"`
	ResourceType  davResourceType `xml:"resourcetype"`
}

type davResourceType struct {
	Collection *struct{} `xml:"collection"`
}

// davError decodes the <d:error> body some servers return alongside
// non-2xx statuses. No Client method decodes it; error paths report
// only the HTTP status.
type davError struct {
	XMLName xml.Name `xml:"error"`
	Message string   `xml:"message"`
}
