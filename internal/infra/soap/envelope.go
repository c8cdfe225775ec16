package soap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
)

const (
	// EnvelopeNamespace is the SOAP 1.1 envelope namespace.
	EnvelopeNamespace = "http://schemas.xmlsoap.org/soap/envelope/"
	// ContentType is sent with every request.
	ContentType = "text/xml; charset=utf-8"

	xsiNamespace = "http://www.w3.org/2001/XMLSchema-instance"
	xsdNamespace = "http://www.w3.org/2001/XMLSchema"
)

// Operation describes one SOAP method.
type Operation struct {
	// Name is used in spans and errors.
	Name string
	// Action is the SOAPAction URI, sent quoted.
	Action string
	// Response is the local name of the element wrapping the result.
	Response string
}

type envelope struct {
	XMLName xml.Name `xml:"soap:Envelope"`
	XSI     string   `xml:"xmlns:xsi,attr"`
	XSD     string   `xml:"xmlns:xsd,attr"`
	SOAP    string   `xml:"xmlns:soap,attr"`
	Body    envelopeBody
}

type envelopeBody struct {
	XMLName xml.Name `xml:"soap:Body"`
	Content any
}

// MarshalEnvelope wraps content in a SOAP 1.1 envelope. content must carry
// its element name and namespace in an XMLName field.
func MarshalEnvelope(content any) ([]byte, error) {
	env := envelope{
		XSI:  xsiNamespace,
		XSD:  xsdNamespace,
		SOAP: EnvelopeNamespace,
		Body: envelopeBody{Content: content},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	if err := xml.NewEncoder(&buf).Encode(env); err != nil {
		return nil, fmt.Errorf("failed to marshal soap envelope: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeResponse reads a response document as a token stream, skips forward
// to the first element whose local name is element, and decodes only that
// element into out. A SOAP fault found first is returned as *FaultError.
func DecodeResponse(r io.Reader, element string, out any) error {
	d := xml.NewDecoder(r)
	for {
		tok, err := d.Token()
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: %s", ErrElementNotFound, element)
		}
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrElementNotFound, element, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}

		switch {
		case start.Name.Space == EnvelopeNamespace && start.Name.Local == "Fault":
			var f Fault
			if err := d.DecodeElement(&f, &start); err != nil {
				return &DecodeError{Element: "Fault", Err: err}
			}
			return &FaultError{Fault: f}
		case start.Name.Local == element:
			if err := d.DecodeElement(out, &start); err != nil {
				return &DecodeError{Element: element, Err: err}
			}
			return nil
		}
	}
}

// extractFault returns the fault carried by an error response body, if any.
func extractFault(body []byte) *FaultError {
	d := xml.NewDecoder(bytes.NewReader(body))
	for {
		tok, err := d.Token()
		if err != nil {
			return nil
		}
		start, ok := tok.(xml.StartElement)
		if !ok || start.Name.Space != EnvelopeNamespace || start.Name.Local != "Fault" {
			continue
		}
		var f Fault
		if err := d.DecodeElement(&f, &start); err != nil {
			return nil
		}
		return &FaultError{Fault: f}
	}
}
