package domain

import "encoding/json"

// Event is a decoded push-channel message. Payload holds whatever JSON value
// the server sent: an object, an array, a scalar or nil for null.
type Event struct {
	Payload any
}

// Object returns the payload when it is a JSON object.
func (e Event) Object() (map[string]any, bool) {
	object, ok := e.Payload.(map[string]any)
	return object, ok
}

// Type is the object's "type" string, empty for anything else.
func (e Event) Type() string {
	value, _ := e.Field("type").(string)
	return value
}

func (e Event) Data() any {
	return e.Field("data")
}

// Field looks key up in an object payload. Other payloads have no fields.
func (e Event) Field(key string) any {
	object, ok := e.Object()
	if !ok {
		return nil
	}
	return object[key]
}

// MarshalJSON writes the payload back out unchanged.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.Payload)
}
