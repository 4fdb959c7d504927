package postgres

import (
	"strconv"
	"strings"

	"github.com/Mr-houngbo/Colit/internal/domain/announcement"
)

func addWhere(query string) string {
	if strings.Contains(query, " WHERE ") {
		return " AND"
	}
	return " WHERE"
}

func itoa(i int) string {
	return strconv.Itoa(i)
}

func contactColumns(rc *announcement.ReceiverContact) (name, phone, email *string) {
	if rc == nil {
		return nil, nil, nil
	}
	n, p, e := rc.Name, rc.Phone, rc.Email
	return &n, &p, &e
}

func contactFromColumns(name, phone, email *string) *announcement.ReceiverContact {
	if name == nil && phone == nil && email == nil {
		return nil
	}
	rc := &announcement.ReceiverContact{}
	if name != nil {
		rc.Name = *name
	}
	if phone != nil {
		rc.Phone = *phone
	}
	if email != nil {
		rc.Email = *email
	}
	return rc
}
