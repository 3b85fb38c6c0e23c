// Package wire defines the chunk ingest message and its encodings.
//
// Chunks arrive either as JSON or as a protobuf-encoded Chunk message,
// optionally snappy-compressed. Both decode into ChunkMessage, which
// resolves producer defaults and converts to types.Chunk. The protobuf
// layout is:
//
//	message ChannelData { repeated double values = 1 [packed = true]; }
//	message Chunk {
//	  string recording_id = 1;
//	  int64 sequence_index = 2;
//	  repeated string channels = 3;
//	  repeated ChannelData data = 4;
//	  optional double chunk_start_sec = 5;
//	  double sampling_rate = 6;
//	  double timestamp = 7;
//	  int64 samples_per_chunk = 8;
//	}
package wire

import (
	"fmt"

	"github.com/xtxerr/eegstore/internal/errors"
)

// Media types accepted on the ingest endpoint.
const (
	ContentTypeJSON     = "application/json"
	ContentTypeProtobuf = "application/x-protobuf"
	EncodingSnappy      = "snappy"
)

// =============================================================================
// Error Body Helpers
// =============================================================================

// ErrorBody is the JSON body of every non-2xx response.
type ErrorBody struct {
	Code      int32  `json:"code"`
	Name      string `json:"error"`
	Message   string `json:"detail"`
	RequestID string `json:"request_id,omitempty"`
}

// NewError creates an error body with the given code and message.
// Error codes should be from the errors package (errors.Code*).
func NewError(requestID string, code int32, msg string) *ErrorBody {
	return &ErrorBody{
		Code:      code,
		Name:      errors.CodeName(code),
		Message:   msg,
		RequestID: requestID,
	}
}

// NewErrorFromErr creates an error body from a Go error, mapping it with
// errors.ErrorToCode.
func NewErrorFromErr(requestID string, err error) *ErrorBody {
	return NewError(requestID, errors.ErrorToCode(err), err.Error())
}

// NewErrorf creates an error body with a formatted message.
func NewErrorf(requestID string, code int32, format string, args ...interface{}) *ErrorBody {
	return NewError(requestID, code, fmt.Sprintf(format, args...))
}

// Err converts a received error body back into a Go error that matches
// the sentinel for its code.
func (b *ErrorBody) Err() error {
	return fmt.Errorf("%s: %w", b.Message, errors.CodeToError(b.Code))
}
