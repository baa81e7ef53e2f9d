package storage

import (
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// JsonToBson parses a JSON document string into its BSON document
// representation, using canonical (strict) extended JSON.
func JsonToBson(jsonStr string) (bson.D, error) {
	var doc bson.D
	if err := bson.UnmarshalExtJSON([]byte(jsonStr), true, &doc); err != nil {
		return nil, fmt.Errorf("json to bson: %w", err)
	}
	return doc, nil
}

// BsonToJson renders a BSON document back to a JSON string using relaxed
// extended JSON, suitable for re-decoding with encoding/json.
func BsonToJson(bsonData []byte) (string, error) {
	var doc bson.D
	if err := bson.Unmarshal(bsonData, &doc); err != nil {
		return "", fmt.Errorf("bson unmarshal: %w", err)
	}
	jsonBytes, err := bson.MarshalExtJSON(doc, false, false)
	if err != nil {
		return "", fmt.Errorf("bson to json: %w", err)
	}
	return string(jsonBytes), nil
}

// EncodePayload renders a decoded JSON payload as BSON bytes; PayloadSize
// uses it to estimate a document's stored size. The payload is bridged
// through its JSON form into a BSON document, so only object payloads
// encode: any other JSON value returns an error.
func EncodePayload(payload any) ([]byte, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	doc, err := JsonToBson(string(raw))
	if err != nil {
		return nil, err
	}
	data, err := bson.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal bson: %w", err)
	}
	return data, nil
}

// DecodePayload is the inverse of EncodePayload.
func DecodePayload(data []byte) (any, error) {
	jsonStr, err := BsonToJson(data)
	if err != nil {
		return nil, err
	}
	var payload any
	if err := json.Unmarshal([]byte(jsonStr), &payload); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", err)
	}
	return payload, nil
}

// PayloadSize estimates size_bytes as the length of the BSON encoding.
func PayloadSize(payload any) int {
	data, err := EncodePayload(payload)
	if err != nil {
		return 0
	}
	return len(data)
}
