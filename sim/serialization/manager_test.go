package serialization

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type memRequest struct {
	Address uint64
	Data    string
	Write   bool
}

func (r *memRequest) Serialize() (map[string]any, error) {
	return map[string]any{
		"address": r.Address,
		"data":    r.Data,
		"write":   r.Write,
	}, nil
}

func (r *memRequest) Deserialize(fields map[string]any) error {
	r.Address = fields["address"].(uint64)
	r.Data = fields["data"].(string)
	r.Write = fields["write"].(bool)

	return nil
}

func init() {
	RegisterType("serialization_test.memRequest",
		func() Serializable { return &memRequest{} })
}

var _ = Describe("Marshal and Unmarshal", func() {
	roundTrip := func(v any) any {
		data, err := Marshal(v)
		Expect(err).To(Succeed())

		decoded, err := Unmarshal(data)
		Expect(err).To(Succeed())

		return decoded
	}

	It("should round-trip basic values", func() {
		Expect(roundTrip(nil)).To(BeNil())
		Expect(roundTrip(true)).To(Equal(true))
		Expect(roundTrip("payload")).To(Equal("payload"))
		Expect(roundTrip(int64(-42))).To(Equal(int64(-42)))
		Expect(roundTrip(3.5)).To(Equal(3.5))
	})

	It("should widen smaller integers to 64 bits", func() {
		Expect(roundTrip(7)).To(Equal(int64(7)))
		Expect(roundTrip(int32(-9))).To(Equal(int64(-9)))
		Expect(roundTrip(uint32(9))).To(Equal(uint64(9)))
	})

	It("should keep large unsigned values exact", func() {
		big := uint64(1)<<63 + 12345
		Expect(roundTrip(big)).To(Equal(big))
	})

	It("should round-trip registered types", func() {
		req := &memRequest{Address: 0x1000, Data: "cafe", Write: true}

		decoded := roundTrip(req)
		Expect(decoded).To(Equal(req))
	})

	It("should reject unregistered types", func() {
		type stranger struct{ X int }
		_, err := Marshal(stranger{X: 1})
		Expect(err).To(HaveOccurred())
	})

	It("should reject unknown type names on decode", func() {
		data := []byte(
			`{"kind":"serializable","type":"nope","value":{}}`)
		_, err := Unmarshal(data)
		Expect(err).To(HaveOccurred())
	})
})
