package tlsbridge

import "os"

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

func readAndConcat(certFile, chainFile string) ([]byte, error) {
	cert, err := readFile(certFile)
	if err != nil {
		return nil, err
	}

	chain, err := readFile(chainFile)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(cert)+1+len(chain))
	out = append(out, cert...)
	out = append(out, '\n')
	out = append(out, chain...)

	return out, nil
}
