package replaceschema

import "strings"

// abbreviations expands the column name parts commonly seen in legacy
// schemas.
var abbreviations = map[string]string{
	"nm": "name", "dt": "date", "no": "number", "cd": "code",
	"desc": "description", "amt": "amount", "cnt": "count", "qty": "quantity",
	"addr": "address", "tel": "phone", "hp": "phone", "ph": "phone",
	"biz": "business", "pwd": "password", "passwd": "password", "pw": "password",
	"img": "image", "ip": "ip", "zip": "zipcode", "post": "zipcode",
	"msg": "message", "txt": "text", "tit": "title", "subj": "subject",
	"usr": "user", "emp": "employee", "dept": "department", "cat": "category",
	"lat": "latitude", "lng": "longitude", "lon": "longitude",
	"st": "street", "dist": "district", "bal": "balance",
	"reg": "registered", "mod": "modified", "del": "deleted", "cre": "created",
	"upd": "updated", "yn": "yesno", "stat": "status", "sts": "status",
	"typ": "type", "val": "value", "seq": "sequence", "idx": "index",
	"is": "yesno", "flg": "flag",
}

// commentMeanings maps comment keywords to a meaning, most specific first.
var commentMeanings = []struct {
	meaning  string
	keywords []string
}{
	{"phone", []string{"mobile", "phone", "tel"}},
	{"email", []string{"email", "mail"}},
	{"address", []string{"address"}},
	{"zipcode", []string{"zip", "postal"}},
	{"name", []string{"name"}},
	{"password", []string{"password"}},
	{"title", []string{"title", "subject"}},
	{"description", []string{"description", "desc", "remark", "note"}},
	{"date", []string{"date", "time"}},
	{"price", []string{"price", "cost", "amount"}},
	{"count", []string{"count", "qty", "quantity"}},
	{"yesno", []string{"flag", "whether"}},
	{"country", []string{"country"}},
	{"city", []string{"city"}},
	{"url", []string{"url", "link"}},
	{"ip", []string{"ip address"}},
}

// columnMeaning guesses what a column holds: from keywords of its comment,
// else from its name with abbreviations expanded.
func columnMeaning(name, comment string) string {
	c := strings.ToLower(comment)
	for _, m := range commentMeanings {
		for _, k := range m.keywords {
			if strings.Contains(c, k) {
				return m.meaning
			}
		}
	}
	parts := strings.Split(strings.ToLower(name), "_")
	for i, p := range parts {
		if full, ok := abbreviations[p]; ok {
			parts[i] = full
		}
	}
	return strings.Join(parts, " ")
}
