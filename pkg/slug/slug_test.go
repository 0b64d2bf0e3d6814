package slug

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandle_BasicASCII(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Summer Sale", "summer-sale"},
		{"summer-sale", "summer-sale"},
		{"VIP", "vip"},
		{"  Gold   Members!  ", "gold-members"},
		{"a--b__c", "a-b-c"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Handle(tt.input))
		})
	}
}

func TestHandle_VietnameseTitles(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Nhẫn Vàng", "nhan-vang"},
		{"Đồng hồ nữ", "dong-ho-nu"},
		{"Quà tặng miễn phí", "qua-tang-mien-phi"},
		{"Bông tai Kim cương", "bong-tai-kim-cuong"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, Handle(tt.input))
		})
	}
}

func TestHandle_Empty(t *testing.T) {
	assert.Equal(t, "", Handle(""))
	assert.Equal(t, "", Handle("!!!"))
}

func TestHandles_DropsEmpty(t *testing.T) {
	assert.Equal(t, []string{"rings", "nhan-vang"}, Handles([]string{"Rings", " ", "Nhẫn Vàng", "--"}))
}
