package extract

import "strings"

type plainText struct{}

func (plainText) Extract(filename string, raw []byte) (string, error) {
	text, err := decodeUTF8(raw)
	if err != nil {
		return "", err
	}
	return strings.ReplaceAll(text, "\r\n", "\n"), nil
}

func init() {
	Register(".txt", plainText{})
	Register(".text", plainText{})
}
