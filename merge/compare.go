package merge

import (
	"fmt"

	"github.com/alvazir/habasi/esp"
	"github.com/minio/highwayhash"
)

// hashKey is fixed: the hash only serves as a cheap same-bytes precheck
// between two buffers of the same run.
var hashKey = []byte("0123456789ABCDEF0123456789ABCDEF")

func contentHash(data []byte) (uint64, error) {
	hash, err := highwayhash.New64(hashKey)
	if err != nil {
		return 0, err
	}
	_, err = hash.Write(data)
	return hash.Sum64(), err
}

// compareVerdict is the outcome of comparing a composed plugin against the
// previous file contents.
type compareVerdict int

const (
	// compareEqual: nothing changed, keep the old file untouched.
	compareEqual compareVerdict = iota
	// compareMasterSizesOnly: only master sizes in the header moved; the
	// engines do not care, keep the old file untouched.
	compareMasterSizesOnly
	// compareInsignificant: author/description changed, rewrite and log the
	// insignificant change.
	compareInsignificant
	// compareDiffers: real change, rewrite and report the first diff.
	compareDiffers
)

// compareToPrevious diffs the new plugin against the previous file bytes.
// The returned text describes the first difference (or the insignificant
// changes) for the log.
func compareToPrevious(name string, plugin *esp.Plugin, newBytes, oldBytes []byte) (compareVerdict, string, error) {
	newHash, err := contentHash(newBytes)
	if err != nil {
		return compareDiffers, "", err
	}
	oldHash, err := contentHash(oldBytes)
	if err != nil {
		return compareDiffers, "", err
	}
	if newHash == oldHash && len(newBytes) == len(oldBytes) {
		return compareEqual, fmt.Sprintf("Output plugin %q is equal to previous version", name), nil
	}
	old, err := esp.Decode(oldBytes)
	if err != nil {
		return compareDiffers, fmt.Sprintf(
			"Output plugin %q differs from previous version. First difference is: previous version failed to parse.", name), nil
	}
	prefix := fmt.Sprintf("Output plugin %q differs from previous version. First difference is: ", name)
	if len(plugin.Records) != len(old.Records) {
		return compareDiffers, fmt.Sprintf("%srecords number was changed from \"%d\" to \"%d\".",
			prefix, len(old.Records), len(plugin.Records)), nil
	}
	verdict := compareEqual
	text := ""
	for i, record := range plugin.Records {
		oldRecord := old.Records[i]
		if record.Tag == "TES3" && oldRecord.Tag == "TES3" {
			headerVerdict, headerText, err := compareHeaders(name, record, oldRecord)
			if err != nil {
				return compareDiffers, "", err
			}
			if headerVerdict == compareDiffers {
				return compareDiffers, prefix + headerText, nil
			}
			if headerVerdict > verdict {
				verdict, text = headerVerdict, headerText
			}
			continue
		}
		if !record.Equal(oldRecord) {
			if record.Tag == "CELL" {
				if cell, err := esp.DecodeCell(record); err == nil {
					return compareDiffers, fmt.Sprintf("%sreferences or properties were changed in cell \"%s\".",
						prefix, cell.DisplayName()), nil
				}
			}
			return compareDiffers, prefix + "at least one non-header record was changed.", nil
		}
	}
	if verdict == compareEqual {
		text = fmt.Sprintf("Output plugin %q is equal to previous version", name)
	}
	return verdict, text, nil
}

func compareHeaders(name string, newRecord, oldRecord *esp.Record) (compareVerdict, string, error) {
	if newRecord.Equal(oldRecord) {
		return compareEqual, "", nil
	}
	newHeader, err := esp.DecodeHeader(newRecord)
	if err != nil {
		return compareDiffers, "", err
	}
	oldHeader, err := esp.DecodeHeader(oldRecord)
	if err != nil {
		return compareDiffers, "", err
	}
	if newHeader.NumRecords != oldHeader.NumRecords {
		return compareDiffers, fmt.Sprintf("records number was changed from \"%d\" to \"%d\" in header.",
			oldHeader.NumRecords, newHeader.NumRecords), nil
	}
	if len(newHeader.Masters) != len(oldHeader.Masters) {
		return compareDiffers, fmt.Sprintf("masters number was changed from \"%d\" to \"%d\" in header.",
			len(oldHeader.Masters), len(newHeader.Masters)), nil
	}
	for i := range newHeader.Masters {
		if newHeader.Masters[i].Name != oldHeader.Masters[i].Name {
			return compareDiffers, "masters list was changed in header.", nil
		}
	}
	if newHeader.Version != oldHeader.Version || newHeader.FileType != oldHeader.FileType {
		return compareDiffers, "header was changed.", nil
	}
	verdict := compareEqual
	text := ""
	if newHeader.Author != oldHeader.Author || newHeader.Description != oldHeader.Description {
		verdict = compareInsignificant
		text = fmt.Sprintf("Output plugin %q differs from previous version insignificantly:", name)
		if newHeader.Author != oldHeader.Author {
			text += fmt.Sprintf("\n  Author field was changed from %q to %q", oldHeader.Author, newHeader.Author)
		}
		if newHeader.Description != oldHeader.Description {
			text += fmt.Sprintf("\n  Description field was changed from %q to %q", oldHeader.Description, newHeader.Description)
		}
	}
	sizesChanged := false
	var sizesText string
	for i := range newHeader.Masters {
		if newHeader.Masters[i].Size != oldHeader.Masters[i].Size {
			sizesChanged = true
			sizesText += fmt.Sprintf("\n  Size of master %q was changed from \"%d\" to \"%d\"",
				newHeader.Masters[i].Name, oldHeader.Masters[i].Size, newHeader.Masters[i].Size)
		}
	}
	if sizesChanged && verdict == compareEqual {
		return compareMasterSizesOnly, fmt.Sprintf(
			"Output plugin %q is equal to previous version, only size of master(s) was changed:%s",
			name, sizesText), nil
	}
	if sizesChanged {
		text += sizesText
	}
	return verdict, text, nil
}
