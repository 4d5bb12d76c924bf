package screening

import "strings"

const keySep = "_"

var keyEscaper = strings.NewReplacer(`\`, `\\`, keySep, `\`+keySep)

// CreateKey builds the screening key movieId_location_date_experience. Field
// values are escaped so distinct tuples never share a key.
func CreateKey(movieID, location, date, experience string) string {
	return joinKey(movieID, location, date, experience)
}

// lookupKey identifies an upstream lookup; location is applied later.
func lookupKey(movieID, date, experience string) string {
	return joinKey(movieID, date, experience)
}

func joinKey(fields ...string) string {
	for i, f := range fields {
		fields[i] = keyEscaper.Replace(f)
	}
	return strings.Join(fields, keySep)
}
