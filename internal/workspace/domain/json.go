package domain

import "encoding/json"

func decodeJSONStrings(blob []byte, out *[]string) error {
	return json.Unmarshal(blob, out)
}
