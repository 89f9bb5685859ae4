package analytics

import (
	"encoding/binary"
	"hash/fnv"
	"sync"
	"time"

	"github.com/sqids/sqids-go"
)

var (
	sq     *sqids.Sqids
	sqOnce sync.Once
)

func getSqids() *sqids.Sqids {
	sqOnce.Do(func() {
		var err error
		sq, err = sqids.New(sqids.Options{
			Alphabet:  "k3G7QAe51FCsiWrNOYBUwM6XzZvdLT4j9JhyHKg2cVbxfERq0mSoI8lDpunPat",
			MinLength: 8,
		})
		if err != nil {
			panic("sqids init failed: " + err.Error())
		}
	})
	return sq
}

// VisitorID 生成伪访客标识：同一 IP + UA 在同一天得到同一个值，跨天会变。
//
// 不持久、不可逆推出 IP，只用于粗粒度去重展示。
func VisitorID(ip, userAgent string, at time.Time) string {
	h := fnv.New64a()
	h.Write([]byte(ip))
	h.Write([]byte{0})
	h.Write([]byte(userAgent))
	h.Write([]byte{0})
	var day [8]byte
	binary.BigEndian.PutUint64(day[:], uint64(at.UTC().Unix()/86400))
	h.Write(day[:])

	// sqids 对单个数字有上限，拆成两段 32 位
	sum := h.Sum64()
	id, err := getSqids().Encode([]uint64{sum >> 32, sum & 0xffffffff})
	if err != nil {
		return ""
	}
	return id
}
