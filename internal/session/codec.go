// Package session encodes the session query log into the opaque token that
// round-trips through the client between requests.
package session

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
	"github.com/klauspost/compress/zstd"

	"github.com/kailas-cloud/casequery/internal/domain"
)

// formatVersion is written into every token payload.
const formatVersion = 1

// zstdMagic is the zstd frame magic number (RFC 8878 §3.1.1).
var zstdMagic = []byte{0x28, 0xB5, 0x2F, 0xFD}

// maxDecodedSize bounds decompressed payloads.
const maxDecodedSize = 4 << 20

var (
	encMode     cbor.EncMode
	decMode     cbor.DecMode
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("session: CBOR encoder initialization failed: " + err.Error())
	}
	// Form values are not UTF-8 checked, so decode accepts whatever Encode wrote.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		UTF8:              cbor.UTF8DecodeInvalid,
	}.DecMode()
	if err != nil {
		panic("session: CBOR decoder initialization failed: " + err.Error())
	}

	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic("session: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil, zstd.WithDecoderMaxMemory(maxDecodedSize))
	if err != nil {
		panic("session: zstd decoder initialization failed: " + err.Error())
	}
}

type payload struct {
	Version int       `cbor:"v"`
	Turns   []turnDTO `cbor:"t"`
}

type turnDTO struct {
	Query     string      `cbor:"q"`
	Search    [][]termDTO `cbor:"s"`
	Highlight []termDTO   `cbor:"h"`
}

type termDTO struct {
	Text     string `cbor:"x"`
	Stripped string `cbor:"n"`
	Priority int    `cbor:"p,omitempty"`
}

// Encode serializes the log into a URL-safe token.
func Encode(log domain.Log) (string, error) {
	p := payload{Version: formatVersion, Turns: make([]turnDTO, len(log))}
	for i, turn := range log {
		p.Turns[i] = turnToDTO(turn)
	}

	raw, err := encMode.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal session: %w", err)
	}

	compressed := zstdEncoder.EncodeAll(raw, make([]byte, 0, len(raw)))
	return base64.RawURLEncoding.EncodeToString(compressed), nil
}

// Decode is the inverse of Encode. An empty token yields an empty log.
// Tokens written by the legacy JSON format are accepted as well.
// Any malformed token fails with an error matching domain.ErrDecode.
func Decode(token string) (domain.Log, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return domain.Log{}, nil
	}

	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, domain.NewDecodeError("base64", err)
	}

	switch {
	case bytes.HasPrefix(data, zstdMagic):
		return decodeCompressed(data)
	case bytes.HasPrefix(bytes.TrimSpace(data), []byte("{")):
		return decodeLegacy(data)
	default:
		return nil, domain.NewDecodeError("format", fmt.Errorf("unrecognized payload"))
	}
}

func decodeCompressed(data []byte) (domain.Log, error) {
	raw, err := zstdDecoder.DecodeAll(data, nil)
	if err != nil {
		return nil, domain.NewDecodeError("zstd", err)
	}

	var p payload
	if err := decMode.Unmarshal(raw, &p); err != nil {
		return nil, domain.NewDecodeError("cbor", err)
	}
	if p.Version != formatVersion {
		return nil, domain.NewDecodeError("version", fmt.Errorf("unsupported version %d", p.Version))
	}

	log := make(domain.Log, len(p.Turns))
	for i, t := range p.Turns {
		log[i] = turnFromDTO(t)
	}
	return log, nil
}

func turnToDTO(turn domain.Turn) turnDTO {
	dto := turnDTO{Query: turn.Query}
	if turn.Expansion.Search != nil {
		dto.Search = make([][]termDTO, len(turn.Expansion.Search))
		for i, group := range turn.Expansion.Search {
			dto.Search[i] = termsToDTO(group)
		}
	}
	dto.Highlight = termsToDTO(turn.Expansion.Highlight)
	return dto
}

func turnFromDTO(dto turnDTO) domain.Turn {
	turn := domain.Turn{Query: dto.Query}
	if dto.Search != nil {
		turn.Expansion.Search = make([]domain.TermGroup, len(dto.Search))
		for i, group := range dto.Search {
			turn.Expansion.Search[i] = termsFromDTO(group)
		}
	}
	turn.Expansion.Highlight = termsFromDTO(dto.Highlight)
	return turn
}

func termsToDTO(terms []domain.Term) []termDTO {
	if terms == nil {
		return nil
	}
	out := make([]termDTO, len(terms))
	for i, t := range terms {
		out[i] = termDTO{Text: t.Text(), Stripped: t.Stripped(), Priority: t.Priority()}
	}
	return out
}

func termsFromDTO(dtos []termDTO) []domain.Term {
	if dtos == nil {
		return nil
	}
	out := make([]domain.Term, len(dtos))
	for i, d := range dtos {
		out[i] = domain.ReconstructTerm(d.Text, d.Stripped, d.Priority)
	}
	return out
}
