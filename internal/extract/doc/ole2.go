// ole2.go implements just enough of the Compound File Binary Format (the
// container legacy .doc files use) to pull named top-level streams out by
// name: the FAT sector chain walk and the directory entry table. Mini-FAT
// short-stream storage is intentionally unsupported (WordDocument and the
// table streams are always big enough to live in the regular FAT), which
// keeps this reader small; see DESIGN.md for why no CFB library was
// available in the example corpus.
package doc

import (
	"encoding/binary"
	"fmt"
)

const (
	sectorFree     = 0xFFFFFFFF
	sectorEndChain = 0xFFFFFFFE
	sectorFAT      = 0xFFFFFFFD
	sectorDIFAT    = 0xFFFFFFFC
)

var cfbMagic = [8]byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1}

type compoundFile struct {
	data       []byte
	sectorSize int
	fat        []uint32
	dirEntries []dirEntry
}

type dirEntry struct {
	name         string
	objectType   byte
	startSector  uint32
	streamSize   uint64
}

func openCompoundFile(data []byte) (*compoundFile, error) {
	if len(data) < 512 {
		return nil, fmt.Errorf("ole2: too short to be a compound file")
	}
	for i, b := range cfbMagic {
		if data[i] != b {
			return nil, fmt.Errorf("ole2: bad magic")
		}
	}

	sectorShift := binary.LittleEndian.Uint16(data[30:32])
	sectorSize := 1 << sectorShift

	numFATSectors := binary.LittleEndian.Uint32(data[44:48])
	firstDirSector := binary.LittleEndian.Uint32(data[48:52])
	firstDIFATSector := binary.LittleEndian.Uint32(data[68:72])
	numDIFATSectors := binary.LittleEndian.Uint32(data[72:76])

	cf := &compoundFile{data: data, sectorSize: sectorSize}

	fatSectorIDs := make([]uint32, 0, numFATSectors)
	for i := 0; i < 109 && uint32(i) < numFATSectors; i++ {
		off := 76 + i*4
		fatSectorIDs = append(fatSectorIDs, binary.LittleEndian.Uint32(data[off:off+4]))
	}

	difatSector := firstDIFATSector
	for i := uint32(0); i < numDIFATSectors && difatSector != sectorEndChain; i++ {
		sectorData, err := cf.readSectorRaw(difatSector)
		if err != nil {
			break
		}
		entriesPerSector := sectorSize/4 - 1
		for j := 0; j < entriesPerSector; j++ {
			id := binary.LittleEndian.Uint32(sectorData[j*4 : j*4+4])
			if id == sectorFree || id == sectorEndChain {
				continue
			}
			fatSectorIDs = append(fatSectorIDs, id)
		}
		difatSector = binary.LittleEndian.Uint32(sectorData[entriesPerSector*4 : entriesPerSector*4+4])
	}

	cf.fat = make([]uint32, 0, len(fatSectorIDs)*sectorSize/4)
	for _, sid := range fatSectorIDs {
		sectorData, err := cf.readSectorRaw(sid)
		if err != nil {
			return nil, fmt.Errorf("ole2: read FAT sector: %w", err)
		}
		for off := 0; off+4 <= len(sectorData); off += 4 {
			cf.fat = append(cf.fat, binary.LittleEndian.Uint32(sectorData[off:off+4]))
		}
	}

	dirBytes, err := cf.readChain(firstDirSector)
	if err != nil {
		return nil, fmt.Errorf("ole2: read directory chain: %w", err)
	}
	for off := 0; off+128 <= len(dirBytes); off += 128 {
		entry, ok := parseDirEntry(dirBytes[off : off+128])
		if ok {
			cf.dirEntries = append(cf.dirEntries, entry)
		}
	}

	return cf, nil
}

func parseDirEntry(b []byte) (dirEntry, bool) {
	nameLenBytes := binary.LittleEndian.Uint16(b[64:66])
	objectType := b[66]
	if objectType == 0 || nameLenBytes < 2 {
		return dirEntry{}, false
	}
	nameChars := int(nameLenBytes)/2 - 1
	if nameChars < 0 {
		nameChars = 0
	}
	name := utf16LEToString(b[0 : nameChars*2])
	startSector := binary.LittleEndian.Uint32(b[116:120])
	streamSize := binary.LittleEndian.Uint64(b[120:128])
	return dirEntry{name: name, objectType: objectType, startSector: startSector, streamSize: streamSize}, true
}

func utf16LEToString(b []byte) string {
	runes := make([]uint16, len(b)/2)
	for i := range runes {
		runes[i] = binary.LittleEndian.Uint16(b[i*2 : i*2+2])
	}
	return string(utf16Decode(runes))
}

func utf16Decode(units []uint16) []rune {
	out := make([]rune, 0, len(units))
	for i := 0; i < len(units); i++ {
		u := units[i]
		if u >= 0xD800 && u <= 0xDBFF && i+1 < len(units) {
			lo := units[i+1]
			if lo >= 0xDC00 && lo <= 0xDFFF {
				r := (rune(u-0xD800)<<10 | rune(lo-0xDC00)) + 0x10000
				out = append(out, r)
				i++
				continue
			}
		}
		out = append(out, rune(u))
	}
	return out
}

func (cf *compoundFile) readSectorRaw(sector uint32) ([]byte, error) {
	start := 512 + int(sector)*cf.sectorSize
	end := start + cf.sectorSize
	if start < 0 || end > len(cf.data) {
		return nil, fmt.Errorf("ole2: sector %d out of range", sector)
	}
	return cf.data[start:end], nil
}

func (cf *compoundFile) readChain(start uint32) ([]byte, error) {
	var out []byte
	sector := start
	visited := map[uint32]bool{}
	for sector != sectorEndChain && sector != sectorFree {
		if visited[sector] {
			return nil, fmt.Errorf("ole2: circular sector chain")
		}
		visited[sector] = true
		data, err := cf.readSectorRaw(sector)
		if err != nil {
			return nil, err
		}
		out = append(out, data...)
		if int(sector) >= len(cf.fat) {
			break
		}
		sector = cf.fat[sector]
	}
	return out, nil
}

// stream returns the full contents of the named top-level stream, trimmed
// to its declared size.
func (cf *compoundFile) stream(name string) ([]byte, bool) {
	for _, e := range cf.dirEntries {
		if e.objectType != 2 || e.name != name {
			continue
		}
		data, err := cf.readChain(e.startSector)
		if err != nil {
			return nil, false
		}
		if uint64(len(data)) > e.streamSize {
			data = data[:e.streamSize]
		}
		return data, true
	}
	return nil, false
}
