package esp

import "fmt"

// Dialogue types as stored in DIAL records.
const (
	DialogueTopic      = 0
	DialogueVoice      = 1
	DialogueGreeting   = 2
	DialoguePersuasion = 3
	DialogueJournal    = 4
)

// DialType returns the dialogue type of a DIAL record. Deleted DIAL records
// may lack the DATA subrecord; they report Topic.
func DialType(record *Record) int {
	if sub := record.Sub("DATA"); sub != nil && len(sub.Data) >= 1 {
		return int(sub.Data[0])
	}
	return DialogueTopic
}

// SetDialType rewrites the dialogue type of a DIAL record.
func SetDialType(record *Record, dialogueType int) {
	if sub := record.Sub("DATA"); sub != nil && len(sub.Data) >= 1 {
		sub.Data[0] = byte(dialogueType)
		return
	}
	record.SetSub("DATA", []byte{byte(dialogueType)})
}

// InfoType returns the dialogue type an INFO record claims to belong to.
func InfoType(record *Record) (int, error) {
	sub := record.Sub("DATA")
	if sub == nil || len(sub.Data) < 4 {
		return 0, fmt.Errorf("%w: INFO %q has no type data", ErrCorrupted, record.ID())
	}
	return int(leUint32(sub.Data)), nil
}

// SetInfoType rewrites the dialogue type of an INFO record.
func SetInfoType(record *Record, dialogueType int) error {
	sub := record.Sub("DATA")
	if sub == nil || len(sub.Data) < 4 {
		return fmt.Errorf("%w: INFO %q has no type data", ErrCorrupted, record.ID())
	}
	copy(sub.Data[:4], putUint32(uint32(dialogueType)))
	return nil
}
