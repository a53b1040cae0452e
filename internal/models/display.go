package models

// DisplayMetadata is the presentation data attached to a storage or category.
type DisplayMetadata struct {
	Name  string
	Icon  string
	Color string
}

var storageMeta = map[Storage]DisplayMetadata{
	StorageWaiting:     {Name: "기다림", Icon: "clock", Color: "#F5A623"},
	StorageAnswered:    {Name: "응답됨", Icon: "checkmark.circle", Color: "#34C759"},
	StorageNotAnswered: {Name: "응답 안됨", Icon: "xmark.circle", Color: "#8E8E93"},
}

var categoryMeta = map[Category]DisplayMetadata{
	CategoryPersonal:     {Name: "개인", Icon: "person", Color: "#5B8DEF"},
	CategoryFamily:       {Name: "가족", Icon: "house", Color: "#F28B82"},
	CategoryHealth:       {Name: "건강", Icon: "heart", Color: "#FF6B6B"},
	CategoryWork:         {Name: "직장", Icon: "briefcase", Color: "#A0845C"},
	CategoryRelationship: {Name: "관계", Icon: "person.2", Color: "#C58AF9"},
	CategoryThanksgiving: {Name: "감사", Icon: "sparkles", Color: "#FBBC04"},
	CategoryVision:       {Name: "비전", Icon: "eye", Color: "#34A0A4"},
	CategoryOther:        {Name: "기타", Icon: "ellipsis.circle", Color: "#9AA0A6"},
}

// StorageMeta returns display data for a storage. Unknown values get the raw string as name.
func StorageMeta(s Storage) DisplayMetadata {
	if m, ok := storageMeta[s]; ok {
		return m
	}
	return DisplayMetadata{Name: string(s)}
}

// CategoryMeta returns display data for a category. Unknown values get the raw string as name.
func CategoryMeta(c Category) DisplayMetadata {
	if m, ok := categoryMeta[c]; ok {
		return m
	}
	return DisplayMetadata{Name: string(c)}
}
