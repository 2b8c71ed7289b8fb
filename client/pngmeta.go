package client

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/sandmoen/comfyforge/graphapi"
)

var pngHeader = []byte{137, 80, 78, 71, 13, 10, 26, 10}

// GetPngMetadata reads the tEXt chunks of a PNG stream into keyword/content
// pairs.
func GetPngMetadata(r io.Reader) (map[string]string, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r, header); err != nil {
		return nil, err
	}
	if !bytes.Equal(header, pngHeader) {
		return nil, errors.New("not a valid PNG file")
	}

	txtChunks := make(map[string]string)

	for {
		var length uint32
		err := binary.Read(r, binary.BigEndian, &length)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		chunkType := make([]byte, 4)
		if _, err := io.ReadFull(r, chunkType); err != nil {
			return nil, err
		}

		if string(chunkType) == "tEXt" {
			chunkData := make([]byte, length)
			if _, err := io.ReadFull(r, chunkData); err != nil {
				return nil, err
			}

			keywordEnd := bytes.IndexByte(chunkData, 0)
			if keywordEnd == -1 {
				return nil, errors.New("malformed tEXt chunk")
			}

			txtChunks[string(chunkData[:keywordEnd])] = string(chunkData[keywordEnd+1:])
		} else {
			// Skip the chunk data if it's not tEXt
			if _, err := io.CopyN(io.Discard, r, int64(length)); err != nil {
				return nil, err
			}
		}

		// Skip the CRC
		if _, err := io.CopyN(io.Discard, r, 4); err != nil {
			return nil, err
		}
	}

	return txtChunks, nil
}

// ParametersFromPNG recovers the generation parameters embedded in a PNG the
// backend saved for a prompt queued through QueuePrompt. The backend writes
// each extra_pnginfo key as its own tEXt chunk.
func ParametersFromPNG(r io.Reader) (*graphapi.GenerationParameters, error) {
	metadata, err := GetPngMetadata(r)
	if err != nil {
		return nil, err
	}

	content, ok := metadata["comfyforge"]
	if !ok {
		return nil, errors.New("png does not contain generation parameters")
	}

	stored := &PromptMetadata{}
	if err := json.Unmarshal([]byte(content), stored); err != nil {
		return nil, fmt.Errorf("decoding embedded parameters: %w", err)
	}
	if stored.Parameters == nil {
		return nil, errors.New("png does not contain generation parameters")
	}
	return stored.Parameters, nil
}

// ParametersFromPNGFile is ParametersFromPNG for a file on disk.
func ParametersFromPNGFile(path string) (*graphapi.GenerationParameters, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParametersFromPNG(file)
}
